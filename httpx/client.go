// Package httpx implements the bearer-auth JSON client shared by all
// capability services. Every request is stamped with the tenant that will own
// the resulting resource via the X-Tenant-Id header.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/metrics"
)

// TenantHeader is the mandatory tenant stamp on outbound requests.
const TenantHeader = "X-Tenant-Id"

// ErrNotFound maps backend 404 responses; operations document whether it
// becomes a nil result or a false return.
var ErrNotFound = errors.New("resource not found")

// HTTPError is a non-2xx backend response that was not retried away.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *HTTPError) Transient() bool {
	switch {
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

const bodyExcerptLimit = 512

// Config controls authentication, retries and the connection pool.
type Config struct {
	BaseURL string
	APIKey  string

	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration

	MaxConnsPerHost int
	ConnLifetime    time.Duration
	IdleConnTimeout time.Duration

	HealthPath     string
	HealthInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = 20
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Second
	}
}

// Client is a thread-safe backend client owned by the platform and shared by
// all services.
type Client struct {
	cfg    Config
	base   *url.URL
	logger *zap.Logger

	mu            sync.Mutex
	transport     *http.Transport
	transportBorn time.Time
	http          *http.Client

	healthMu    sync.Mutex
	lastProbe   time.Time
	lastHealthy bool
}

// New validates the configuration and builds the pooled client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("httpx: base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{cfg: cfg, base: base, logger: logger}
	c.transport = c.newTransport()
	c.transportBorn = time.Now()
	c.http = &http.Client{Timeout: cfg.Timeout, Transport: c.transport}
	return c, nil
}

func (c *Client) newTransport() *http.Transport {
	return &http.Transport{
		MaxConnsPerHost:     c.cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: c.cfg.MaxConnsPerHost,
		IdleConnTimeout:     c.cfg.IdleConnTimeout,
	}
}

// ForceReconnect tears down pooled connections and resets the health cache.
func (c *Client) ForceReconnect() {
	c.mu.Lock()
	old := c.rebuildTransportLocked()
	c.mu.Unlock()
	old.CloseIdleConnections()

	c.healthMu.Lock()
	c.lastProbe = time.Time{}
	c.healthMu.Unlock()
}

// rebuildTransportLocked swaps in a fresh transport and returns the old one
// for teardown. Callers hold c.mu.
func (c *Client) rebuildTransportLocked() *http.Transport {
	old := c.transport
	c.transport = c.newTransport()
	c.transportBorn = time.Now()
	c.http = &http.Client{Timeout: c.cfg.Timeout, Transport: c.transport}
	return old
}

// client returns the pooled client, rotating the transport once it outlives
// the configured connection lifetime.
func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.ConnLifetime > 0 && time.Since(c.transportBorn) >= c.cfg.ConnLifetime {
		old := c.rebuildTransportLocked()
		go old.CloseIdleConnections()
	}
	return c.http
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Tenant is stamped as X-Tenant-Id. Empty omits the header; services must
	// only omit it when no ambient or default tenant exists.
	Tenant string
	// Out receives the decoded JSON response body when non-nil.
	Out any
}

// Do performs the request with transient-failure retries and exponential
// backoff. Non-transient 4xx responses fail immediately; 404 maps to
// ErrNotFound.
func (c *Client) Do(ctx context.Context, req Request) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("httpx: encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.HTTPRetries.Inc()
			delay := c.cfg.RetryBaseDelay * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.once(ctx, req, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		c.logger.Warn("Backend request failed, retrying",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, req Request, payload []byte) error {
	u := c.base.JoinPath(req.Path)
	if req.Query != nil {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Tenant != "" {
		httpReq.Header.Set(TenantHeader, req.Tenant)
	}

	start := time.Now()
	resp, err := c.client().Do(httpReq)
	metrics.HTTPRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(req.Method, "transport").Inc()
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.HTTPRequests.WithLabelValues(req.Method, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptLimit))
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	if req.Out != nil {
		if err := json.NewDecoder(resp.Body).Decode(req.Out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("httpx: decode response: %w", err)
		}
	}
	return nil
}

// retryable classifies transport errors, timeouts and transient HTTP
// statuses. Context cancellation is never retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// url.Error wraps dial failures, TLS handshake errors and the like.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Get issues a GET with the tenant stamp and decodes into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, tenant string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Tenant: tenant, Out: out})
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, tenant string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Tenant: tenant, Out: out})
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, tenant string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Tenant: tenant, Out: out})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, query url.Values, tenant string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Query: query, Tenant: tenant})
}

// Healthy probes the backend health endpoint, caching the result for the
// configured interval.
func (c *Client) Healthy(ctx context.Context) bool {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	if time.Since(c.lastProbe) < c.cfg.HealthInterval {
		return c.lastHealthy
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	u := c.base.JoinPath(c.cfg.HealthPath)
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.client().Do(req)
	c.lastProbe = time.Now()
	if err != nil {
		c.lastHealthy = false
		return false
	}
	_ = resp.Body.Close()
	c.lastHealthy = resp.StatusCode >= 200 && resp.StatusCode <= 299
	return c.lastHealthy
}
