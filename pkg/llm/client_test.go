package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/draftzen/internal/resilience"
)

func newTestClient(baseURL string) Client {
	return NewClient("test-key", "claude-sonnet-4-5-20250929", 1000,
		WithRequestOptions(
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	)
}

func messageBody(text string) map[string]any {
	return map[string]any{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-5-20250929",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":                10,
			"output_tokens":               5,
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     0,
		},
	}
}

func TestComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageBody("1. Intro\n2. Body\n3. Close"))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	out, err := client.Complete(context.Background(), "extract the outline")
	require.NoError(t, err)
	assert.Equal(t, "1. Intro\n2. Body\n3. Close", out)
}

func TestComplete_MaxTokensOverride(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MaxTokens int64 `json:"max_tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, int64(500), req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageBody("short answer"))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	out, err := client.Complete(context.Background(), "describe", WithMaxTokens(500))
	require.NoError(t, err)
	assert.Equal(t, "short answer", out)
}

func TestComplete_ErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   resilience.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, resilience.KindUnauthorized},
		{"rate limited", http.StatusTooManyRequests, resilience.KindRateLimited},
		{"bad request", http.StatusBadRequest, resilience.KindBadRequest},
		{"unavailable", http.StatusInternalServerError, resilience.KindUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type": "error",
					"error": map[string]any{
						"type":    "api_error",
						"message": "boom",
					},
				})
			}))
			defer ts.Close()

			client := newTestClient(ts.URL)
			_, err := client.Complete(context.Background(), "prompt")
			require.Error(t, err)

			kind, ok := resilience.KindOf(err)
			require.True(t, ok, "expected a classified error, got %v", err)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestComplete_FatalVsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "permission_error", "message": "denied"},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))
	assert.False(t, resilience.IsTransient(err))
}
