package enrich

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/store"
	"github.com/sells-group/draftzen/pkg/llm"
	"github.com/sells-group/draftzen/pkg/writerzen"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, candidates []model.CandidateDocument) (*model.OutlineResult, error) {
	args := m.Called(ctx, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OutlineResult), args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, prompt string, opts ...llm.CompleteOption) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) CreateKeywordTask(ctx context.Context, input string) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *mockJobs) GetKeywordIdeas(ctx context.Context, taskID string) ([]model.KeywordIdea, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.KeywordIdea), args.Error(1)
}

func (m *mockJobs) CreateProject(ctx context.Context, name string) (*writerzen.Project, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*writerzen.Project), args.Error(1)
}

func (m *mockJobs) CreateContentTask(ctx context.Context, project *writerzen.Project, keyword string) (string, error) {
	args := m.Called(ctx, project, keyword)
	return args.String(0), args.Error(1)
}

func (m *mockJobs) GetContentKeywords(ctx context.Context, taskID string) ([]model.KeywordTerm, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.KeywordTerm), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) EnsureAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditAccount), args.Error(1)
}

func (m *mockLedger) Account(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditAccount), args.Error(1)
}

func (m *mockLedger) Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error) {
	args := m.Called(ctx, accountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *mockLedger) Debit(ctx context.Context, accountID string, op model.Operation, amount int64, linkedResourceID string) (int64, error) {
	args := m.Called(ctx, accountID, op, amount, linkedResourceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) Credit(ctx context.Context, accountID string, op model.Operation, amount int64, note string) (int64, error) {
	args := m.Called(ctx, accountID, op, amount, note)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) Correct(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	args := m.Called(ctx, accountID, amount, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) SetBalance(ctx context.Context, accountID string, target int64) (int64, error) {
	args := m.Called(ctx, accountID, target)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) Transactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CreditTransaction), args.Error(1)
}

func (m *mockLedger) RecordReconciliation(ctx context.Context, ev model.ReconciliationEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockLedger) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLedger) Close() error {
	return m.Called().Error(0)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateDraft(ctx context.Context, draft *model.Draft) (*model.Draft, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Draft), args.Error(1)
}

func (m *mockStore) GetDraft(ctx context.Context, accountID, draftID string) (*model.Draft, error) {
	args := m.Called(ctx, accountID, draftID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Draft), args.Error(1)
}

func (m *mockStore) ListDrafts(ctx context.Context, accountID string, filter store.DraftFilter) ([]model.Draft, error) {
	args := m.Called(ctx, accountID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Draft), args.Error(1)
}

func (m *mockStore) DeleteDraft(ctx context.Context, accountID, draftID string) error {
	return m.Called(ctx, accountID, draftID).Error(0)
}

func (m *mockStore) SetOutline(ctx context.Context, accountID, draftID string, outline *model.OutlineResult) error {
	return m.Called(ctx, accountID, draftID, outline).Error(0)
}

func (m *mockStore) SetDescription(ctx context.Context, accountID, draftID string, description string) error {
	return m.Called(ctx, accountID, draftID, description).Error(0)
}

func (m *mockStore) SetKeywords(ctx context.Context, accountID, draftID string, keywords []model.KeywordIdea) error {
	return m.Called(ctx, accountID, draftID, keywords).Error(0)
}

func (m *mockStore) SetIncludeTerms(ctx context.Context, accountID, draftID string, terms []model.KeywordTerm) error {
	return m.Called(ctx, accountID, draftID, terms).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
