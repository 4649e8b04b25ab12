// Package writerzen provides a client for the WriterZen keyword-explorer
// and content-creator job APIs. Both follow the same shape: submit a task,
// poll until its data is ready, fetch the result.
package writerzen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/resilience"
)

const (
	defaultBaseURL   = "https://app.writerzen.net"
	keywordTaskPath  = "/api/services/keyword-explorer/v2/task"
	keywordDataPath  = "/api/services/keyword-explorer/v2/task/get-data"
	projectsPath     = "/api/services/content-creator/v1/projects"
	contentTaskPath  = "/api/services/content-creator/v1/tasks"
	contentDataPath  = "/api/services/content-creator/v1/data"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
)

// Credentials is the session credential pair for the service. It is
// injected at construction and rotated by re-constructing the client;
// nothing in this package mutates it.
type Credentials struct {
	Cookie    string
	XSRFToken string
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return c.Cookie != "" && c.XSRFToken != ""
}

// Client defines the remote job operations consumed by the keyword
// workflows. GetKeywordIdeas and GetContentKeywords return an empty slice
// while the task is still running; terminal failures carry a
// resilience.Kind (401/403 are fatal, the rest retryable).
type Client interface {
	CreateKeywordTask(ctx context.Context, input string) (string, error)
	GetKeywordIdeas(ctx context.Context, taskID string) ([]model.KeywordIdea, error)
	CreateProject(ctx context.Context, name string) (*Project, error)
	CreateContentTask(ctx context.Context, project *Project, keyword string) (string, error)
	GetContentKeywords(ctx context.Context, taskID string) ([]model.KeywordTerm, error)
}

// Project identifies a content-creator project; the task create call
// needs both ids.
type Project struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("writerzen: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	creds   Credentials
	baseURL string
	http    *http.Client
}

// NewClient creates a WriterZen client with the given session credentials.
func NewClient(creds Credentials, opts ...Option) Client {
	c := &httpClient{
		creds:   creds,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type keywordTaskRequest struct {
	Input      string `json:"input"`
	Type       string `json:"type"`
	LocationID int    `json:"location_id"`
	LanguageID int    `json:"language_id"`
}

type idEnvelope struct {
	Data struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"user_id"`
	} `json:"data"`
}

func (c *httpClient) CreateKeywordTask(ctx context.Context, input string) (string, error) {
	req := keywordTaskRequest{
		Input:      input,
		Type:       "keyword",
		LocationID: 2840,
		LanguageID: 1000,
	}

	var resp idEnvelope
	if err := c.post(ctx, keywordTaskPath, "", req, &resp); err != nil {
		return "", eris.Wrap(err, "writerzen: create keyword task")
	}
	if resp.Data.ID == 0 {
		return "", resilience.NewCapabilityError(resilience.KindBadRequest,
			eris.New("writerzen: create keyword task: no task id in response"))
	}
	return fmt.Sprintf("%d", resp.Data.ID), nil
}

type keywordDataEnvelope struct {
	Data struct {
		Ideas []struct {
			ID           int64   `json:"id"`
			Keyword      string  `json:"keyword"`
			SearchVolume int64   `json:"search_volume"`
			Competition  float64 `json:"competition"`
		} `json:"ideas"`
	} `json:"data"`
}

// GetKeywordIdeas fetches the keyword task result. An empty slice with a
// nil error means the task has not produced data yet.
func (c *httpClient) GetKeywordIdeas(ctx context.Context, taskID string) ([]model.KeywordIdea, error) {
	var resp keywordDataEnvelope
	path := fmt.Sprintf("%s?id=%s", keywordDataPath, taskID)
	if err := c.get(ctx, path, taskID, &resp); err != nil {
		return nil, eris.Wrap(err, "writerzen: get keyword data")
	}

	ideas := make([]model.KeywordIdea, 0, len(resp.Data.Ideas))
	for _, it := range resp.Data.Ideas {
		ideas = append(ideas, model.KeywordIdea{
			ID:           it.ID,
			Keyword:      it.Keyword,
			SearchVolume: it.SearchVolume,
			Competition:  it.Competition,
		})
	}
	return ideas, nil
}

func (c *httpClient) CreateProject(ctx context.Context, name string) (*Project, error) {
	var resp idEnvelope
	if err := c.post(ctx, projectsPath, "", map[string]string{"name": name}, &resp); err != nil {
		return nil, eris.Wrap(err, "writerzen: create project")
	}
	if resp.Data.ID == 0 {
		return nil, resilience.NewCapabilityError(resilience.KindBadRequest,
			eris.New("writerzen: create project: no project id in response"))
	}
	return &Project{ID: resp.Data.ID, UserID: resp.Data.UserID}, nil
}

type contentTaskRequest struct {
	Keyword   string `json:"keyword"`
	EnableNLP bool   `json:"enable_nlp"`
	Language  struct {
		Name         string `json:"name"`
		LanguageCode string `json:"language_code"`
		CriteriaID   int    `json:"criteria_id"`
		ID           int    `json:"id"`
	} `json:"language"`
	LanguageID int `json:"language_id"`
	Location   struct {
		ID         int    `json:"id"`
		CriteriaID int    `json:"criteria_id"`
		Name       string `json:"name"`
	} `json:"location"`
	LocationID int    `json:"location_id"`
	Priority   string `json:"priority"`
	ProjectID  int64  `json:"project_id"`
	OwnerID    int64  `json:"owner_id"`
}

func (c *httpClient) CreateContentTask(ctx context.Context, project *Project, keyword string) (string, error) {
	req := contentTaskRequest{
		Keyword:    keyword,
		EnableNLP:  true,
		LanguageID: 2,
		LocationID: 1,
		Priority:   "3",
		ProjectID:  project.ID,
		OwnerID:    project.UserID,
	}
	req.Language.Name = "English"
	req.Language.LanguageCode = "en"
	req.Language.CriteriaID = 1000
	req.Language.ID = 2
	req.Location.ID = 1
	req.Location.CriteriaID = 2840
	req.Location.Name = "United States"

	var resp idEnvelope
	if err := c.post(ctx, contentTaskPath, "", req, &resp); err != nil {
		return "", eris.Wrap(err, "writerzen: create content task")
	}
	if resp.Data.ID == 0 {
		return "", resilience.NewCapabilityError(resilience.KindBadRequest,
			eris.New("writerzen: create content task: no task id in response"))
	}
	return fmt.Sprintf("%d", resp.Data.ID), nil
}

type contentDataEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

type contentKeyword struct {
	Text         string  `json:"text"`
	SearchVolume int64   `json:"searchVolume"`
	Repeat       int     `json:"repeat"`
	Density      float64 `json:"density"`
	Similarity   float64 `json:"similarity"`
	Frequency    float64 `json:"frequency"`
}

// GetContentKeywords fetches the best_keyword data set for a content
// task. An empty slice with a nil error means the task is still running.
func (c *httpClient) GetContentKeywords(ctx context.Context, taskID string) ([]model.KeywordTerm, error) {
	var resp contentDataEnvelope
	path := fmt.Sprintf("%s?id=%s&key=best_keyword", contentDataPath, taskID)
	if err := c.get(ctx, path, taskID, &resp); err != nil {
		return nil, eris.Wrap(err, "writerzen: get content keywords")
	}

	// The result arrives as a list whose first element is the keyword set.
	if len(resp.Data) == 0 {
		return nil, nil
	}
	var raw []contentKeyword
	if err := json.Unmarshal(resp.Data[0], &raw); err != nil {
		// First element is not an array until the task finishes.
		return nil, nil
	}

	terms := make([]model.KeywordTerm, 0, len(raw))
	for _, k := range raw {
		terms = append(terms, model.KeywordTerm{
			Text:         k.Text,
			SearchVolume: k.SearchVolume,
			Repeat:       k.Repeat,
			Density:      k.Density,
			Similarity:   k.Similarity,
			Frequency:    k.Frequency,
		})
	}
	return terms, nil
}

func (c *httpClient) headers(req *http.Request, taskID string) {
	referer := c.baseURL + "/user/keyword-explorer/"
	if taskID != "" {
		referer += taskID
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", referer)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-XSRF-TOKEN", c.creds.XSRFToken)
	req.Header.Set("Cookie", c.creds.Cookie)
}

func (c *httpClient) post(ctx context.Context, path, taskID string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.headers(req, taskID)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path, taskID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	c.headers(req, taskID)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if resilience.IsTransient(err) {
			return resilience.NewCapabilityError(resilience.KindUnavailable, err)
		}
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if kind, ok := resilience.KindFromHTTPStatus(resp.StatusCode); ok {
			return resilience.NewCapabilityError(kind, apiErr)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
