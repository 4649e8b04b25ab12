// Package outline resolves a table of contents from an ordered list of
// candidate documents. Three strategies run in a fixed order: a direct
// structured-extraction pass over the whole list, a per-document scrape of
// heading markers, and a cleanup pass over scraped headings. Later stages
// run only when earlier ones miss, and a cleanup failure never discards a
// scrape success.
package outline

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/pkg/headings"
	"github.com/sells-group/draftzen/pkg/llm"
)

// Config carries the tunable parts of the resolver. The heading length
// bounds are heuristic and deliberately configuration, not contract.
type Config struct {
	// MinHeadingRunes and MaxHeadingRunes bound plausible heading lengths;
	// anything outside is dropped as navigation noise or inlined prose.
	MinHeadingRunes int
	MaxHeadingRunes int

	// CallTimeout bounds each individual external call.
	CallTimeout time.Duration
}

// DefaultConfig returns the resolver defaults.
func DefaultConfig() Config {
	return Config{
		MinHeadingRunes: 4,
		MaxHeadingRunes: 120,
		CallTimeout:     45 * time.Second,
	}
}

// Resolver runs the fallback chain.
type Resolver struct {
	llm  llm.Client
	docs headings.Client
	cfg  Config
	log  *zap.Logger
}

// NewResolver wires the two external capabilities into a resolver.
func NewResolver(llmClient llm.Client, docs headings.Client, cfg Config) *Resolver {
	if cfg.MinHeadingRunes <= 0 {
		cfg.MinHeadingRunes = DefaultConfig().MinHeadingRunes
	}
	if cfg.MaxHeadingRunes <= 0 {
		cfg.MaxHeadingRunes = DefaultConfig().MaxHeadingRunes
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Resolver{
		llm:  llmClient,
		docs: docs,
		cfg:  cfg,
		log:  zap.L().Named("outline"),
	}
}

// Resolve tries each strategy in order and returns the first hit. A fully
// exhausted chain is not an error: the result carries the NotFound strategy
// and a fixed message. The error return is reserved for context
// cancellation.
func (r *Resolver) Resolve(ctx context.Context, candidates []model.CandidateDocument) (*model.OutlineResult, error) {
	if len(candidates) == 0 {
		return notFoundResult(), nil
	}

	ordered := make([]model.CandidateDocument, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PriorityRank < ordered[j].PriorityRank
	})

	if res := r.direct(ctx, ordered); res != nil {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, source := r.scrape(ctx, ordered)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		r.log.Info("outline not found", zap.Int("candidates", len(ordered)))
		return notFoundResult(), nil
	}

	return r.cleanup(ctx, raw, source), nil
}

func notFoundResult() *model.OutlineResult {
	return &model.OutlineResult{
		Text:     model.NotFoundMessage,
		Strategy: model.StrategyNotFound,
	}
}

// direct issues the single whole-list extraction call. Any failure,
// malformed response included, is a miss.
func (r *Resolver) direct(ctx context.Context, candidates []model.CandidateDocument) *model.OutlineResult {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	resp, err := r.llm.Complete(callCtx, directPrompt(candidates))
	if err != nil {
		r.log.Warn("direct extraction failed", zap.Error(err))
		return nil
	}

	payload, ok := extractPayload(resp)
	if !ok {
		r.log.Debug("direct extraction miss", zap.Int("response_len", len(resp)))
		return nil
	}

	source, text := splitSourceLine(payload)
	if text == "" {
		return nil
	}

	r.log.Info("outline resolved",
		zap.String("strategy", string(model.StrategyDirectAI)),
		zap.String("source", source),
	)
	return &model.OutlineResult{
		Text:           text,
		Strategy:       model.StrategyDirectAI,
		SourceDocument: source,
	}
}

// splitSourceLine peels a leading "SOURCE: <url>" line off the payload.
func splitSourceLine(payload string) (source, text string) {
	lines := strings.SplitN(payload, "\n", 2)
	first := strings.TrimSpace(lines[0])
	if strings.HasPrefix(first, sourcePrefix) {
		source = strings.TrimSpace(strings.TrimPrefix(first, sourcePrefix))
		if len(lines) == 2 {
			text = strings.TrimSpace(lines[1])
		}
		return source, text
	}
	return "", strings.TrimSpace(payload)
}

// scrape walks candidates in priority order and stops at the first one
// with at least one plausible heading. Fetch failures count as zero
// headings for that candidate.
func (r *Resolver) scrape(ctx context.Context, candidates []model.CandidateDocument) ([]model.Heading, string) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return nil, ""
		}

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		found, err := r.docs.Fetch(callCtx, c.Reference)
		cancel()
		if err != nil {
			r.log.Debug("candidate fetch failed",
				zap.String("uri", c.Reference),
				zap.Error(err),
			)
			continue
		}

		kept := r.filterHeadings(found)
		if len(kept) == 0 {
			continue
		}

		r.log.Info("candidate yielded headings",
			zap.String("uri", c.Reference),
			zap.Int("raw", len(found)),
			zap.Int("kept", len(kept)),
		)
		return kept, c.Reference
	}
	return nil, ""
}

// filterHeadings drops degenerate headings by normalized rune length.
func (r *Resolver) filterHeadings(in []model.Heading) []model.Heading {
	var out []model.Heading
	for _, h := range in {
		text := norm.NFC.String(strings.TrimSpace(h.Text))
		n := utf8.RuneCountInString(text)
		if n < r.cfg.MinHeadingRunes || n > r.cfg.MaxHeadingRunes {
			continue
		}
		out = append(out, model.Heading{Level: h.Level, Text: text})
	}
	return out
}

// cleanup submits raw headings for reduction; a malformed or failed
// cleanup falls back to deterministic local formatting.
func (r *Resolver) cleanup(ctx context.Context, raw []model.Heading, source string) *model.OutlineResult {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	resp, err := r.llm.Complete(callCtx, cleanupPrompt(raw))
	if err == nil {
		if payload, ok := extractPayload(resp); ok {
			r.log.Info("outline resolved",
				zap.String("strategy", string(model.StrategyScrapeCleaned)),
				zap.String("source", source),
			)
			return &model.OutlineResult{
				Text:           payload,
				Strategy:       model.StrategyScrapeCleaned,
				SourceDocument: source,
			}
		}
	} else {
		r.log.Warn("cleanup extraction failed", zap.Error(err))
	}

	r.log.Info("outline resolved",
		zap.String("strategy", string(model.StrategyScrapeRawFormatted)),
		zap.String("source", source),
	)
	return &model.OutlineResult{
		Text:           FormatRaw(raw),
		Strategy:       model.StrategyScrapeRawFormatted,
		SourceDocument: source,
	}
}

var tagMarker = regexp.MustCompile(`<[^>]*>`)

// FormatRaw renders scraped headings as a numbered list with any embedded
// tag-like markers stripped.
func FormatRaw(raw []model.Heading) string {
	var sb strings.Builder
	n := 0
	for _, h := range raw {
		text := strings.TrimSpace(tagMarker.ReplaceAllString(h.Text, ""))
		if text == "" {
			continue
		}
		n++
		if n > 1 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strconv.Itoa(n))
		sb.WriteString(". ")
		sb.WriteString(text)
	}
	return sb.String()
}
