package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"levlyfy/pkg/logger"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	maxBodyBytes = 4 << 20
)

// TokenSource yields the current bearer token, or "" when logged out.
type TokenSource interface {
	Token() string
}

// ObserveFunc receives one call per completed backend request.
// status is 0 when the request failed before a response arrived.
type ObserveFunc func(method, path string, status int, d time.Duration)

// Client talks to the backend REST API. It attaches the bearer token to
// every request and reports authenticated 401s to the unauthorized hook.
type Client struct {
	base           *url.URL
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	observe        ObserveFunc
	log            *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHandler sets the hook fired when a request that carried
// a token is answered with 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) { c.observe = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client for baseURL, e.g. "https://api.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: base url must be absolute, got %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.OrDiscard(c.log)
	return c, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do issues one request. body is JSON encoded when non-nil; a 2xx payload
// is unwrapped with DecodeData into out. Non-2xx responses become *APIError.
// Requests are never retried here.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		req.Header.Set(authorizationHeader, bearerPrefix+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(method, path, 0, start)
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.record(method, path, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("apiclient: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, path, resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized && token != "" && c.onUnauthorized != nil {
			c.log.Warn("backend rejected session token", "method", method, "path", path)
			c.onUnauthorized()
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := DecodeData(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) record(method, path string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(method, path, status, time.Since(start))
	}
}
