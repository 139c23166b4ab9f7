// Package sdk provides a client for the SOAR console API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Client is a SOAR console API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	userAgent  string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new SOAR console API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "soar-sdk/1.0",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Query selects executions for list and summary calls. Zero values
// disable a dimension.
type Query struct {
	Status string
	Source string
	Window string
	Search string
	Limit  int
}

func (q Query) encode() string {
	vals := url.Values{}
	if q.Status != "" {
		vals.Set("status", q.Status)
	}
	if q.Source != "" {
		vals.Set("source", q.Source)
	}
	if q.Window != "" {
		vals.Set("window", q.Window)
	}
	if q.Search != "" {
		vals.Set("search", q.Search)
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(vals) == 0 {
		return ""
	}
	return "?" + vals.Encode()
}

// APIError represents an API error.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// IsNotFound reports whether err is an API not-found error.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Health checks the server health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListExecutions lists executions matching the query.
func (c *Client) ListExecutions(ctx context.Context, q Query) ([]*Execution, error) {
	var result struct {
		Executions []*Execution `json:"executions"`
		Total      int          `json:"total"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/executions"+q.encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Executions, nil
}

// GetExecution retrieves an execution by ID.
func (c *Client) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var result Execution
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/executions/"+id, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateExecution pushes a new execution record. Intended for engines
// reporting runs to the console.
func (c *Client) CreateExecution(ctx context.Context, rec *Execution) (*Execution, error) {
	var result Execution
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/executions", rec, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateExecution pushes a fresh snapshot of an existing execution.
func (c *Client) UpdateExecution(ctx context.Context, rec *Execution) (*Execution, error) {
	var result Execution
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/executions/"+rec.ID, rec, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AbortExecution requests an abort of a running execution. The server
// annotates the record and relays the request to the owning engine; the
// displayed status changes only when the engine reports it. The acting
// identity comes from the API key when one is configured.
func (c *Client) AbortExecution(ctx context.Context, id, reason string) (*AbortResult, error) {
	return c.AbortExecutionAs(ctx, id, reason, Actor{})
}

// AbortExecutionAs requests an abort with an explicit acting identity,
// for callers not authenticating with an API key.
func (c *Client) AbortExecutionAs(ctx context.Context, id, reason string, by Actor) (*AbortResult, error) {
	body := struct {
		Reason      string `json:"reason,omitempty"`
		RequestedBy Actor  `json:"requested_by,omitempty"`
	}{Reason: reason, RequestedBy: by}

	var result AbortResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/executions/"+id+"/abort", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSummary returns aggregates over the executions matching the query.
func (c *Client) GetSummary(ctx context.Context, q Query) (*Summary, error) {
	var result Summary
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/summary"+q.encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPlaybooks lists all playbook definitions.
func (c *Client) ListPlaybooks(ctx context.Context) ([]*Playbook, error) {
	var result []*Playbook
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/playbooks", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetPlaybook retrieves a playbook by ID.
func (c *Client) GetPlaybook(ctx context.Context, id string) (*Playbook, error) {
	var result Playbook
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/playbooks/"+id, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatePlaybook creates a playbook definition.
func (c *Client) CreatePlaybook(ctx context.Context, pb *Playbook) (*Playbook, error) {
	var result Playbook
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/playbooks", pb, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdatePlaybook updates a playbook definition.
func (c *Client) UpdatePlaybook(ctx context.Context, pb *Playbook) (*Playbook, error) {
	var result Playbook
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/playbooks/"+pb.ID, pb, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeletePlaybook deletes a playbook definition.
func (c *Client) DeletePlaybook(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/playbooks/"+id, nil, nil)
}

// ListRules lists all detection rules.
func (c *Client) ListRules(ctx context.Context) ([]*Rule, error) {
	var result []*Rule
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/rules", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRule retrieves a rule by ID.
func (c *Client) GetRule(ctx context.Context, id string) (*Rule, error) {
	var result Rule
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/rules/"+id, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateRule creates a detection rule.
func (c *Client) CreateRule(ctx context.Context, rule *Rule) (*Rule, error) {
	var result Rule
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/rules", rule, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateRule updates a detection rule.
func (c *Client) UpdateRule(ctx context.Context, rule *Rule) (*Rule, error) {
	var result Rule
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/rules/"+rule.ID, rule, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteRule deletes a detection rule.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/rules/"+id, nil, nil)
}

// ListAnomalies lists all flagged anomalies.
func (c *Client) ListAnomalies(ctx context.Context) ([]*Anomaly, error) {
	var result []*Anomaly
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/anomalies", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAnomaly retrieves an anomaly by ID.
func (c *Client) GetAnomaly(ctx context.Context, id string) (*Anomaly, error) {
	var result Anomaly
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/anomalies/"+id, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAnomaly pushes a flagged anomaly. Intended for detection
// pipelines reporting to the console.
func (c *Client) CreateAnomaly(ctx context.Context, a *Anomaly) (*Anomaly, error) {
	var result Anomaly
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/anomalies", a, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListNotices lists recent console notices, newest first. A positive
// limit caps the result.
func (c *Client) ListNotices(ctx context.Context, limit int) ([]*Notice, error) {
	path := "/api/v1/notices"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result []*Notice
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// envelope is the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{
				StatusCode: resp.StatusCode,
				Code:       "unknown",
				Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
			}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "unknown", Message: "request failed"}
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
