package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/models"
)

// HTTPClient implements DataSource by calling the LiftLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// decides who the user is, so userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) ActiveSession(ctx context.Context, _ int) (*SessionState, error) {
	body, err := c.get(ctx, "/api/v1/session", nil)
	if err != nil {
		return nil, err
	}
	var view struct {
		Session models.Session `json:"session"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("httpclient: decode session: %w", err)
	}
	state := &SessionState{Logged: []models.ExerciseLogs{}}
	if view.Session.ID == "" {
		return state, nil
	}
	state.Session = &view.Session
	logs, err := c.SessionLogs(ctx, 0, view.Session.ID)
	if err != nil {
		return nil, err
	}
	state.Logged = logs
	return state, nil
}

func (c *HTTPClient) ListCandidates(ctx context.Context, _ int, contextID string, f catalog.Filter) ([]models.ExerciseReference, error) {
	params := url.Values{}
	if f.Query != "" {
		params.Set("q", f.Query)
	}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if contextID != "" {
		params.Set("context", contextID)
	}

	body, err := c.get(ctx, "/api/v1/catalog", params)
	if err != nil {
		return nil, err
	}

	var refs []models.ExerciseReference
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, fmt.Errorf("httpclient: decode catalog: %w", err)
	}
	return refs, nil
}

func (c *HTTPClient) SessionLogs(ctx context.Context, _ int, sessionID string) ([]models.ExerciseLogs, error) {
	body, err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/logs", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Exercises []models.ExerciseLogs `json:"exercises"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("httpclient: decode session logs: %w", err)
	}
	return resp.Exercises, nil
}
