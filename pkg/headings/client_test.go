package headings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/resilience"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Cold Email Strategy</title></head><body>
<h1>The Complete Cold Email Strategy Guide</h1>
<p>Intro text.</p>
<h2>Why Cold Email Still Works</h2>
<h2>  Building   Your   List  </h2>
<div><h3>Segmenting prospects</h3></div>
<h4></h4>
<h6>Footnotes</h6>
</body></html>`

func newTestFetcher() Client {
	return NewClient(WithPerHostRate(rate.Inf, 1))
}

func TestFetch_ExtractsHeadingsInDocumentOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer ts.Close()

	client := newTestFetcher()
	got, err := client.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	want := []model.Heading{
		{Level: 1, Text: "The Complete Cold Email Strategy Guide"},
		{Level: 2, Text: "Why Cold Email Still Works"},
		{Level: 2, Text: "Building Your List"},
		{Level: 3, Text: "Segmenting prospects"},
		{Level: 6, Text: "Footnotes"},
	}
	assert.Equal(t, want, got)
}

func TestFetch_ForbiddenClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := newTestFetcher()
	_, err := client.Fetch(context.Background(), ts.URL)
	require.Error(t, err)

	kind, ok := resilience.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, resilience.KindUnauthorized, kind)
}

func TestFetch_ServerErrorClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := newTestFetcher()
	_, err := client.Fetch(context.Background(), ts.URL)
	require.Error(t, err)

	kind, ok := resilience.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, resilience.KindUnavailable, kind)
}

func TestFetch_UnreachableHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from here on

	client := newTestFetcher()
	_, err := client.Fetch(context.Background(), ts.URL)
	require.Error(t, err)

	kind, ok := resilience.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, resilience.KindUnreachable, kind)
}

func TestFetch_InvalidURI(t *testing.T) {
	client := newTestFetcher()
	_, err := client.Fetch(context.Background(), "not a url")
	require.Error(t, err)

	kind, ok := resilience.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, resilience.KindBadRequest, kind)
}

func TestFetch_TimeoutClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	client := newTestFetcher()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, ts.URL)
	require.Error(t, err)

	kind, ok := resilience.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, resilience.KindTimeout, kind)
}

func TestFetch_CancellationIsNotATimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h2>One</h2></body></html>"))
	}))
	defer ts.Close()

	client := newTestFetcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	if kind, ok := resilience.KindOf(err); ok {
		t.Errorf("cancelled fetch was classified as %s", kind)
	}
}

func TestFetch_PerHostRateLimiting(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h2>One</h2></body></html>"))
	}))
	defer ts.Close()

	// 1 request per 50ms, burst 1: the second fetch must wait.
	client := NewClient(WithPerHostRate(rate.Every(50*time.Millisecond), 1))

	start := time.Now()
	_, err := client.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second fetch was not throttled, elapsed %v", elapsed)
	}
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("h1"))
	assert.Equal(t, 6, headingLevel("h6"))
	assert.Equal(t, 0, headingLevel("h7"))
	assert.Equal(t, 0, headingLevel("div"))
	assert.Equal(t, 0, headingLevel("header"))
}
