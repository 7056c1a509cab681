package viewhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
)

// Client talks to a running view API. Only idempotent reads are retried.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type ClientOption func(*Client)

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) ClientOption {
	return func(c *Client) { c.retryMax = max }
}

// WithHTTPClient replaces the transport, e.g. with one dialing an in-memory listener.
func WithHTTPClient(h *fasthttp.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Snapshot(ctx context.Context) (*boarddto.Snapshot, error) {
	var out boarddto.Snapshot
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/snapshot", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Click(ctx context.Context, row, col int) (*boarddto.ClickResponse, error) {
	var out boarddto.ClickResponse
	req := boarddto.ClickRequest{Row: &row, Col: &col}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/click", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Lobby(ctx context.Context) ([]boarddto.LobbyEntry, error) {
	var out []boarddto.LobbyEntry
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/lobby", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, nil, true)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				if out == nil {
					return nil
				}
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				return nil
			}
			var de boarddto.DomainError
			if json.Unmarshal(resp.Body(), &de) != nil || de.Code == "" {
				de = boarddto.DomainError{Code: fmt.Sprintf("http_%d", status), Message: truncate(string(resp.Body()), 256)}
			}
			if !retry || !shouldRetryStatus(status) {
				return de
			}
			lastErr = de
		} else {
			lastErr = fmt.Errorf("request failed: %w", err)
			if !retry {
				return lastErr
			}
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoff(attempt)); err != nil {
				return lastErr
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		attempt = 5
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusBadGateway, fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
