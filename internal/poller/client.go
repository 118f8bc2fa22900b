package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of a status request made by [Client].
type Response struct {
	// Body is the response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code. Zero if no response was received.
	// It is informational only; the body decides what gets rendered.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is set when the request could not be made or the body could
	// not be read.
	Error error
}

// Client requests status documents from a single upstream source.
type Client struct {
	httpClient *http.Client
	source     string
	timeout    time.Duration
}

// NewClient creates a [Client] for source, the upstream base URL.
//
// A timeout of zero means requests are bounded only by their context.
// Connection pooling mirrors a small fixed fleet: 100 idle connections in
// total, 10 per host, closed after 60 seconds idle.
func NewClient(source string, timeout time.Duration) *Client {
	return &Client{
		source:  strings.TrimRight(source, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			// per-request timeouts are applied via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// DataURL returns the status URL for id: {source}/data/{id}.
func (c *Client) DataURL(id string) string {
	return c.source + "/data/" + url.PathEscape(id)
}

// Fetch performs GET {source}/data/{id}.
//
// Fetch always returns a Response; failures are reported in its Error field.
// Non-2xx responses are not errors.
func (c *Client) Fetch(ctx context.Context, id string) Response {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DataURL(id), nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes idle connections. The client stays usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
