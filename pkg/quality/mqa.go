package quality

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/txn2/mcp-ckan/pkg/ckan"
)

const (
	// DefaultBaseURL is the data.europa.eu MQA dataset cache endpoint.
	DefaultBaseURL = "https://data.europa.eu/api/mqa/cache/datasets"

	// PortalURLFormat is the human-facing quality page for a dataset id.
	PortalURLFormat = "https://data.europa.eu/data/datasets/%s/quality?locale=it"

	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 10 << 20
)

var probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mcp_ckan_quality_probes_total",
	Help: "Total MQA candidate probes by outcome.",
}, []string{"outcome"})

// MQAClient probes the MQA dataset cache over HTTP.
type MQAClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	maxBytes   int64
}

// MQAOption configures an MQAClient.
type MQAOption func(*MQAClient)

// WithBaseURL overrides the MQA endpoint.
func WithBaseURL(u string) MQAOption {
	return func(c *MQAClient) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) MQAOption {
	return func(c *MQAClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) MQAOption {
	return func(c *MQAClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) MQAOption {
	return func(c *MQAClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxResponseBytes caps response bodies.
func WithMaxResponseBytes(n int64) MQAOption {
	return func(c *MQAClient) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewMQAClient creates an MQA client.
func NewMQAClient(opts ...MQAOption) *MQAClient {
	c := &MQAClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		userAgent:  ckan.DefaultUserAgent,
		maxBytes:   defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SourceURL returns the MQA endpoint for candidate.
func (c *MQAClient) SourceURL(candidate string) string {
	return c.baseURL + "/" + url.PathEscape(candidate)
}

// Probe fetches candidate. 404 is retryable; any other failure is fatal.
func (c *MQAClient) Probe(ctx context.Context, candidate string) ProbeOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.SourceURL(candidate)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return Fatal(fmt.Errorf("building MQA request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Fatal(ckan.ClassifyTransportError(c.baseURL, err))
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Retryable()
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return Fatal(&ServiceError{Status: resp.StatusCode, URL: target})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return Fatal(ckan.ClassifyTransportError(c.baseURL, err))
	}
	if int64(len(body)) > c.maxBytes {
		return Fatal(fmt.Errorf("MQA response exceeds %d bytes", c.maxBytes))
	}
	return Success(body)
}

// PortalURL returns the data.europa.eu quality page for id.
func PortalURL(id string) string {
	return fmt.Sprintf(PortalURLFormat, id)
}
