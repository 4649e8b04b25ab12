// Package headings fetches candidate documents and extracts their
// heading-level structural markers.
package headings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// Client defines the document-fetch capability the outline resolver
// depends on. Errors are classified (timeout, unreachable, unauthorized)
// but the resolver treats every failure as "zero headings" for that
// candidate.
type Client interface {
	Fetch(ctx context.Context, uri string) ([]model.Heading, error)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent overrides the request User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithPerHostRate sets the per-destination request rate. Scrape targets
// throttle aggressive clients, and candidates often share a host.
func WithPerHostRate(r rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.perHost = r
		c.burst = burst
	}
}

type httpClient struct {
	http      *http.Client
	userAgent string
	perHost   rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a heading-extraction client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
		perHost:   rate.Limit(2),
		burst:     2,
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.perHost, c.burst)
		c.limiters[host] = l
	}
	return l
}

func (c *httpClient) Fetch(ctx context.Context, uri string) ([]model.Heading, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, resilience.NewCapabilityError(resilience.KindBadRequest,
			eris.Errorf("headings: invalid uri %q", uri))
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		// A cancelled caller is not a fetch timeout; pass it through
		// unclassified so errors.Is(err, context.Canceled) still holds.
		if errors.Is(err, context.Canceled) {
			return nil, eris.Wrap(err, "headings: rate limit wait")
		}
		return nil, resilience.NewCapabilityError(resilience.KindTimeout,
			eris.Wrap(err, "headings: rate limit wait"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, eris.Wrap(err, "headings: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind, ok := resilience.KindFromHTTPStatus(resp.StatusCode)
		if !ok {
			kind = resilience.KindUnavailable
		}
		return nil, resilience.NewCapabilityError(kind,
			eris.Errorf("headings: fetch %s: HTTP %d", uri, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "headings: parse %s", uri)
	}

	return extract(doc), nil
}

// extract walks h1..h6 in document order.
func extract(doc *goquery.Document) []model.Heading {
	var out []model.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		level := headingLevel(goquery.NodeName(sel))
		if level == 0 {
			return
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" {
			return
		}
		out = append(out, model.Heading{Level: level, Text: text})
	})
	return out
}

func headingLevel(tag string) int {
	if len(tag) != 2 || tag[0] != 'h' {
		return 0
	}
	if tag[1] < '1' || tag[1] > '6' {
		return 0
	}
	return int(tag[1] - '0')
}

func classifyTransport(uri string, err error) error {
	var netErr interface{ Timeout() bool }
	wrapped := eris.Wrap(err, fmt.Sprintf("headings: fetch %s", uri))
	switch {
	case errors.Is(err, context.Canceled):
		return wrapped
	case errors.Is(err, context.DeadlineExceeded):
		return resilience.NewCapabilityError(resilience.KindTimeout, wrapped)
	case errors.As(err, &netErr) && netErr.Timeout():
		return resilience.NewCapabilityError(resilience.KindTimeout, wrapped)
	default:
		return resilience.NewCapabilityError(resilience.KindUnreachable, wrapped)
	}
}
