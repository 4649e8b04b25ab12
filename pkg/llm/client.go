// Package llm provides the structured-extraction capability backed by the
// Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/draftzen/internal/resilience"
)

// Client defines the completion operation the enrichment core depends on.
// Failures carry a resilience.Kind so callers can tell fatal-fast errors
// (unauthorized, bad request) from retryable ones (rate limited,
// unavailable).
type Client interface {
	Complete(ctx context.Context, prompt string, opts ...CompleteOption) (string, error)
}

// CompleteOption adjusts a single completion call.
type CompleteOption func(*completeOpts)

type completeOpts struct {
	maxTokens   int64
	temperature *float64
}

// WithMaxTokens overrides the default response token budget.
func WithMaxTokens(n int64) CompleteOption {
	return func(o *completeOpts) {
		o.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature for one call.
func WithTemperature(t float64) CompleteOption {
	return func(o *completeOpts) {
		o.temperature = &t
	}
}

// Option configures the sdkClient.
type Option func(*sdkClient)

// WithRequestOptions passes extra options to the underlying SDK client,
// used by tests to point at a local server.
func WithRequestOptions(reqOpts ...option.RequestOption) Option {
	return func(c *sdkClient) {
		c.reqOpts = append(c.reqOpts, reqOpts...)
	}
}

type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	reqOpts   []option.RequestOption
}

// NewClient creates an Anthropic-backed completion client. The model and
// default token budget come from configuration.
func NewClient(apiKey, model string, maxTokens int64, opts ...Option) Client {
	c := &sdkClient{
		model:     model,
		maxTokens: maxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.reqOpts...)...)
	return c
}

func (c *sdkClient) Complete(ctx context.Context, prompt string, opts ...CompleteOption) (string, error) {
	co := completeOpts{maxTokens: c.maxTokens}
	for _, opt := range opts {
		opt(&co)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: co.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if co.temperature != nil {
		params.Temperature = sdk.Float(*co.temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	zap.L().Debug("llm completion",
		zap.String("model", c.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return sb.String(), nil
}

// classify maps SDK errors onto the shared capability error taxonomy.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if kind, ok := resilience.KindFromHTTPStatus(apiErr.StatusCode); ok {
			return resilience.NewCapabilityError(kind, eris.Wrap(err, "llm: create message"))
		}
	}
	if resilience.IsTransient(err) {
		return resilience.NewCapabilityError(resilience.KindUnavailable, eris.Wrap(err, "llm: create message"))
	}
	return eris.Wrap(err, "llm: create message")
}
