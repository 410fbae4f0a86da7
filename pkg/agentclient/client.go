package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds each request when no timeout option is given.
const DefaultTimeout = 30 * time.Second

// Client talks to a running agent. The underlying http.Client pools
// connections across calls; release them with Close on shutdown.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// New creates a client for the agent at baseURL authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query executes a declarative query via the agent. Outcomes map to three
// error kinds: *AuthError for a rejected key, *ConnectionError for transport
// failures or unexpected statuses, *QueryError when the agent answered with
// success=false.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode query request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Agent-Key", c.apiKey)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Message: "agent authentication failed - check API key"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ConnectionError{URL: c.baseURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: fmt.Errorf("decode response: %w", err)}
	}

	if !result.Success {
		return nil, &QueryError{Message: result.Error}
	}
	return &result, nil
}

// TableQuery bundles the optional parts of a single-table query.
type TableQuery struct {
	Alias   string
	Columns []string
	Filters []FilterCondition
	Joins   []JoinClause
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// QueryTable is a convenience wrapper around Query for one table.
func (c *Client) QueryTable(ctx context.Context, table string, q TableQuery) (*QueryResponse, error) {
	return c.Query(ctx, QueryRequest{
		Table:   table,
		Alias:   q.Alias,
		Columns: q.Columns,
		Filters: q.Filters,
		Joins:   q.Joins,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

// CountTable returns the number of rows in table matching the filters.
func (c *Client) CountTable(ctx context.Context, table string, filters []FilterCondition) (int, error) {
	result, err := c.Query(ctx, QueryRequest{
		Table:   table,
		Columns: []string{"COUNT(*)"},
		Filters: filters,
	})
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, nil
	}
	return scalarToInt(result.Rows[0][0])
}

// scalarToInt handles the numeric representations JSON decoding can yield.
func scalarToInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unexpected count value of type %T", v)
	}
}

// Health fetches the agent's health report. No authentication is required.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectionError{URL: c.baseURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &health, nil
}

// IsHealthy reports whether the agent is reachable and its database probe
// passes.
func (c *Client) IsHealthy(ctx context.Context) bool {
	health, err := c.Health(ctx)
	return err == nil && health.Status == "healthy"
}

// Close releases pooled connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}
