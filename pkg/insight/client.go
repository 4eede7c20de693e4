// Package insight implements a read-only client for an indexing service that serves
// decoded-on-demand contract events over HTTP.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ava-labs/transfer-dashboard/pkg/metrics"
)

var (
	// ErrNetwork wraps transport failures, non-2xx statuses and undecodable bodies.
	ErrNetwork = errors.New("network error")
	// ErrEmptyResponse is returned for a well-formed response without events.
	ErrEmptyResponse = errors.New("no data available")
	// ErrNoDataAvailable is an alias of ErrEmptyResponse.
	ErrNoDataAvailable = ErrEmptyResponse
	// ErrInvalidLimit is returned when a query asks for a non-positive number of events.
	ErrInvalidLimit = errors.New("invalid limit: must be greater than 0")
)

// maxErrorBody bounds how much of a failed response ends up in the error message.
const maxErrorBody = 512

// StatusError carries the upstream status of a failed request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Fetcher returns the raw events for a query.
type Fetcher interface {
	FetchEvents(ctx context.Context, q Query) ([]Event, error)
}

// Client fetches contract events from the events API.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics // nil if metrics disabled
}

var _ Fetcher = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a client for the contract and event configured in cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EventsURL builds the request URL for q.
func (c *Client) EventsURL(q Query) string {
	params := url.Values{}
	params.Set("sort_by", q.SortBy)
	params.Set("sort_order", q.SortOrder)
	params.Set("limit", strconv.Itoa(q.Limit))

	return fmt.Sprintf("%s/v1/%s/events/%s/%s?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.PathEscape(c.cfg.ClientID),
		url.PathEscape(c.cfg.ContractAddress),
		url.PathEscape(c.cfg.EventSignature),
		params.Encode(),
	)
}

// FetchEvents performs one GET against the events endpoint and returns the events in the
// order the API sent them. Nothing is cached and nothing is retried.
func (c *Client) FetchEvents(ctx context.Context, q Query) ([]Event, error) {
	if q.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	if q.SortOrder == "" {
		q.SortOrder = DefaultSortOrder
	}

	c.metrics.IncAPIInFlight()
	defer c.metrics.DecAPIInFlight()

	start := time.Now()
	events, err := c.fetch(ctx, q)
	c.metrics.RecordAPICall(err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) fetch(ctx context.Context, q Query) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.EventsURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %w", ErrNetwork, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	var out eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrNetwork, err)
	}
	if len(out.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return out.Data, nil
}
