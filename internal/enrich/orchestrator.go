// Package enrich orchestrates billable enrichment operations. Each
// operation follows the same settlement discipline: reserve, do the work,
// persist the product, then debit. A failed operation is never debited; a
// debit that fails after the product is stored becomes a reconciliation
// event, not a rollback.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/draftzen/internal/ledger"
	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/resilience"
	"github.com/sells-group/draftzen/internal/store"
	"github.com/sells-group/draftzen/pkg/llm"
	"github.com/sells-group/draftzen/pkg/writerzen"
)

// ErrTaskTimeout is returned when a remote task did not produce data
// within the polling budget. The account is not debited.
var ErrTaskTimeout = errors.New("enrich: remote task timed out")

// OutlineResolver is the outline fallback chain consumed by the
// orchestrator.
type OutlineResolver interface {
	Resolve(ctx context.Context, candidates []model.CandidateDocument) (*model.OutlineResult, error)
}

// Costs holds the per-operation credit prices.
type Costs struct {
	Outline      int64 `yaml:"outline" mapstructure:"outline"`
	Description  int64 `yaml:"description" mapstructure:"description"`
	Keywords     int64 `yaml:"keywords" mapstructure:"keywords"`
	IncludeTerms int64 `yaml:"include_terms" mapstructure:"include_terms"`
}

// DefaultCosts prices every operation at one credit.
func DefaultCosts() Costs {
	return Costs{Outline: 1, Description: 1, Keywords: 1, IncludeTerms: 1}
}

// PollBudgets bounds the two remote-task polling loops.
type PollBudgets struct {
	Keywords     resilience.PollConfig
	IncludeTerms resilience.PollConfig
}

// DefaultPollBudgets mirrors the task services' typical completion times:
// keyword research finishes within a couple of minutes, content tasks
// within under a minute.
func DefaultPollBudgets() PollBudgets {
	return PollBudgets{
		Keywords: resilience.PollConfig{
			MaxAttempts: 36,
			Interval:    5 * time.Second,
			MaxElapsed:  3 * time.Minute,
		},
		IncludeTerms: resilience.PollConfig{
			MaxAttempts: 15,
			Interval:    3 * time.Second,
			MaxElapsed:  time.Minute,
		},
	}
}

// Orchestrator wires the capabilities, the store, and the ledger.
type Orchestrator struct {
	resolver OutlineResolver
	llm      llm.Client
	jobs     writerzen.Client
	store    store.Store
	ledger   ledger.Ledger
	costs    Costs
	budgets  PollBudgets
	retry    resilience.RetryConfig
	log      *zap.Logger
}

// New creates an Orchestrator.
func New(resolver OutlineResolver, llmClient llm.Client, jobs writerzen.Client, st store.Store, led ledger.Ledger, costs Costs, budgets PollBudgets) *Orchestrator {
	if costs == (Costs{}) {
		costs = DefaultCosts()
	}
	if budgets.Keywords.MaxAttempts == 0 {
		budgets.Keywords = DefaultPollBudgets().Keywords
	}
	if budgets.IncludeTerms.MaxAttempts == 0 {
		budgets.IncludeTerms = DefaultPollBudgets().IncludeTerms
	}
	return &Orchestrator{
		resolver: resolver,
		llm:      llmClient,
		jobs:     jobs,
		store:    st,
		ledger:   led,
		costs:    costs,
		budgets:  budgets,
		retry:    resilience.DefaultRetryConfig(),
		log:      zap.L().Named("enrich"),
	}
}

// submitRetry tags the shared retry policy with a logging callback for one
// submit-style remote call. Fatal classifications are never retried.
func (o *Orchestrator) submitRetry(operation string) resilience.RetryConfig {
	cfg := o.retry
	cfg.OnRetry = resilience.RetryLogger("writerzen", operation)
	return cfg
}

// reserve runs the advisory pre-flight check and rejects early when the
// balance cannot cover the operation.
func (o *Orchestrator) reserve(ctx context.Context, accountID string, amount int64) error {
	res, err := o.ledger.Reserve(ctx, accountID, amount)
	if err != nil {
		return err
	}
	if !res.Approved {
		return &ledger.InsufficientCreditsError{Available: res.Available, Required: res.Required}
	}
	return nil
}

// settle debits the account for a delivered product. A debit failure here
// is recorded for manual reconciliation and swallowed: the product has
// already been delivered and is not rolled back.
func (o *Orchestrator) settle(ctx context.Context, accountID string, op model.Operation, amount int64, linkedResourceID string) {
	if _, err := o.ledger.Debit(ctx, accountID, op, amount, linkedResourceID); err != nil {
		o.log.Error("debit failed after delivery",
			zap.String("account_id", accountID),
			zap.String("operation", string(op)),
			zap.String("linked_resource_id", linkedResourceID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		if recErr := o.ledger.RecordReconciliation(ctx, model.ReconciliationEvent{
			AccountID:        accountID,
			Operation:        op,
			LinkedResourceID: linkedResourceID,
			Amount:           amount,
			Cause:            err.Error(),
		}); recErr != nil {
			o.log.Error("recording reconciliation event failed",
				zap.String("account_id", accountID),
				zap.Error(recErr),
			)
		}
	}
}

// ExtractOutline resolves an outline for the draft's candidate list,
// persists it, and settles the charge.
func (o *Orchestrator) ExtractOutline(ctx context.Context, accountID, draftID string) (*model.OutlineResult, error) {
	if err := o.reserve(ctx, accountID, o.costs.Outline); err != nil {
		return nil, err
	}

	draft, err := o.store.GetDraft(ctx, accountID, draftID)
	if err != nil {
		return nil, err
	}

	result, err := o.resolver.Resolve(ctx, draft.Candidates)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: resolve outline")
	}

	if err := o.store.SetOutline(ctx, accountID, draftID, result); err != nil {
		return nil, err
	}

	o.settle(ctx, accountID, model.OpOutlineExtraction, o.costs.Outline, draftID)
	return result, nil
}

// fallbackDescription is the deterministic text used when the model is
// unavailable. Still a delivered, billable product.
func fallbackDescription(topic string) string {
	return fmt.Sprintf("An in-depth article about %s, covering what it is, why it matters, and practical steps to get started.", topic)
}

func descriptionPrompt(topic string) string {
	return fmt.Sprintf(
		"Write a single engaging meta description, at most 160 characters, for a blog article about %q. Respond with the description only, no quotes or commentary.",
		topic,
	)
}

// GenerateDescription produces a short background description for the
// draft's topic. An LLM failure degrades to the deterministic fallback
// rather than failing the operation.
func (o *Orchestrator) GenerateDescription(ctx context.Context, accountID, draftID string) (string, error) {
	if err := o.reserve(ctx, accountID, o.costs.Description); err != nil {
		return "", err
	}

	draft, err := o.store.GetDraft(ctx, accountID, draftID)
	if err != nil {
		return "", err
	}

	description, err := o.llm.Complete(ctx, descriptionPrompt(draft.TopicKeyword), llm.WithMaxTokens(300))
	if err != nil || description == "" {
		if err != nil {
			o.log.Warn("description generation degraded to fallback",
				zap.String("draft_id", draftID),
				zap.Error(err),
			)
		}
		description = fallbackDescription(draft.TopicKeyword)
	}

	if err := o.store.SetDescription(ctx, accountID, draftID, description); err != nil {
		return "", err
	}

	o.settle(ctx, accountID, model.OpDescriptionGeneration, o.costs.Description, draftID)
	return description, nil
}

const maxKeywordResults = 10

// KeywordSuggestions creates a keyword research task and polls it to
// completion within the keyword budget.
func (o *Orchestrator) KeywordSuggestions(ctx context.Context, accountID, draftID, input string) ([]model.KeywordIdea, error) {
	if err := o.reserve(ctx, accountID, o.costs.Keywords); err != nil {
		return nil, err
	}

	taskID, err := resilience.Retry(ctx, o.submitRetry("create_keyword_task"), func(ctx context.Context) (string, error) {
		return o.jobs.CreateKeywordTask(ctx, input)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create keyword task")
	}

	outcome := resilience.Poll(ctx, o.budgets.Keywords, func(ctx context.Context) resilience.AttemptResult[[]model.KeywordIdea] {
		ideas, err := o.jobs.GetKeywordIdeas(ctx, taskID)
		if err != nil {
			if resilience.IsFatal(err) {
				return resilience.Fatal[[]model.KeywordIdea](err)
			}
			// Transient fetch trouble is just another not-yet.
			return resilience.NotYet[[]model.KeywordIdea]()
		}
		if len(ideas) == 0 {
			return resilience.NotYet[[]model.KeywordIdea]()
		}
		return resilience.Ready(ideas)
	})

	ideas, err := unwrapPoll(o.log, outcome, taskID)
	if err != nil {
		return nil, err
	}
	if len(ideas) > maxKeywordResults {
		ideas = ideas[:maxKeywordResults]
	}

	if draftID != "" {
		if err := o.store.SetKeywords(ctx, accountID, draftID, ideas); err != nil {
			return nil, err
		}
	}

	o.settle(ctx, accountID, model.OpKeywordResearch, o.costs.Keywords, draftID)
	return ideas, nil
}

// KeywordsToInclude creates a content project and task, then polls for
// the best-keyword set within the include-terms budget.
func (o *Orchestrator) KeywordsToInclude(ctx context.Context, accountID, draftID, keyword string) ([]model.KeywordTerm, error) {
	if err := o.reserve(ctx, accountID, o.costs.IncludeTerms); err != nil {
		return nil, err
	}

	project, err := resilience.Retry(ctx, o.submitRetry("create_project"), func(ctx context.Context) (*writerzen.Project, error) {
		return o.jobs.CreateProject(ctx, keyword)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create project")
	}
	taskID, err := resilience.Retry(ctx, o.submitRetry("create_content_task"), func(ctx context.Context) (string, error) {
		return o.jobs.CreateContentTask(ctx, project, keyword)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create content task")
	}

	outcome := resilience.Poll(ctx, o.budgets.IncludeTerms, func(ctx context.Context) resilience.AttemptResult[[]model.KeywordTerm] {
		terms, err := o.jobs.GetContentKeywords(ctx, taskID)
		if err != nil {
			if resilience.IsFatal(err) {
				return resilience.Fatal[[]model.KeywordTerm](err)
			}
			return resilience.NotYet[[]model.KeywordTerm]()
		}
		if len(terms) == 0 {
			return resilience.NotYet[[]model.KeywordTerm]()
		}
		return resilience.Ready(terms)
	})

	terms, err := unwrapPoll(o.log, outcome, taskID)
	if err != nil {
		return nil, err
	}
	if len(terms) > maxKeywordResults {
		terms = terms[:maxKeywordResults]
	}

	if draftID != "" {
		if err := o.store.SetIncludeTerms(ctx, accountID, draftID, terms); err != nil {
			return nil, err
		}
	}

	o.settle(ctx, accountID, model.OpKeywordsToInclude, o.costs.IncludeTerms, draftID)
	return terms, nil
}

// unwrapPoll converts a poll outcome into a payload or a caller-facing
// error.
func unwrapPoll[T any](log *zap.Logger, outcome resilience.PollOutcome[T], taskID string) (T, error) {
	var zero T
	switch outcome.State {
	case resilience.PollReady:
		return outcome.Payload, nil
	case resilience.PollTimedOut:
		log.Warn("remote task polling exhausted",
			zap.String("task_id", taskID),
			zap.Int("attempts", outcome.AttemptsUsed),
			zap.Duration("elapsed", outcome.Elapsed),
		)
		return zero, ErrTaskTimeout
	default:
		return zero, eris.Wrapf(outcome.Cause, "enrich: task %s failed", taskID)
	}
}
