// Package ckan provides a client for the CKAN action API
// (GET {server}/api/3/action/{action}).
//
// Every call is a single GET bounded by a per-call timeout. Failures are
// reported as one of the typed errors in this package so callers can tell
// an upstream API error from a timeout, an unresolvable host or any other
// transport failure. Nothing is retried.
package ckan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every action call.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBytes caps the size of a response body.
	DefaultMaxResponseBytes int64 = 10 << 20

	// DefaultUserAgent is sent with every request. Several public portals
	// sit behind firewalls that reject non-browser agents.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	actionPath = "/api/3/action/"
)

// ServerResolver maps a user-supplied server address to the base URL of
// its action API. *portal.Table implements it.
type ServerResolver interface {
	APIURL(server string) string
}

// Client calls CKAN action endpoints.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	userAgent  string
	resolver   ServerResolver
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResponseBytes caps response bodies.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithServerResolver rewrites server addresses before each call.
func WithServerResolver(r ServerResolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithRateLimit paces outgoing requests to rps per second with the given
// burst. rps <= 0 leaves requests unpaced.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		maxBytes:   DefaultMaxResponseBytes,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the standard action API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// BaseURL returns the action API base for server, without trailing slash.
func (c *Client) BaseURL(server string) string {
	if c.resolver != nil {
		return c.resolver.APIURL(server)
	}
	return strings.TrimSuffix(server, "/")
}

// Action calls action on server and decodes the envelope's result into out.
// A nil out discards the result.
func (c *Client) Action(ctx context.Context, server, action string, params url.Values, out any) error {
	raw, err := c.ActionRaw(ctx, server, action, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", action, err)
	}
	return nil
}

// ActionRaw calls action on server and returns the envelope's raw result.
func (c *Client) ActionRaw(ctx context.Context, server, action string, params url.Values) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.do(ctx, server, action, params)

	upstreamRequestsTotal.WithLabelValues(action, outcome(err)).Inc()
	upstreamRequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Debug("ckan action failed", "server", server, "action", action, "error", err)
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, server, action string, params url.Values) (json.RawMessage, error) {
	base := c.BaseURL(server)
	endpoint := base + actionPath + action
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.wait(ctx, server); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", action, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", base+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(server, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	body, err := readLimited(resp.Body, c.maxBytes)
	if err != nil {
		return nil, ClassifyTransportError(server, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{Action: action, Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", action, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, unsuccessfulDetail(body))
	}
	return env.Result, nil
}

// wait blocks until the rate limiter admits the next request.
func (c *Client) wait(ctx context.Context, server string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early when the next token lies past the deadline.
		if ctx.Err() == nil {
			return &TimeoutError{Server: server}
		}
		return ClassifyTransportError(server, ctx.Err())
	}
	return nil
}

// readLimited reads at most limit bytes and fails when the body is larger.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return body, nil
}

// errorMessage extracts error.message, then error when it is a string.
func errorMessage(body []byte) string {
	if m := gjson.GetBytes(body, "error.message"); m.Type == gjson.String && m.Str != "" {
		return m.Str
	}
	if e := gjson.GetBytes(body, "error"); e.Type == gjson.String && e.Str != "" {
		return e.Str
	}
	return "Unknown error"
}

func unsuccessfulDetail(body []byte) string {
	if msg := errorMessage(body); msg != "Unknown error" {
		return msg
	}
	return strings.TrimSpace(string(body))
}
