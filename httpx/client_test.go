package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestHeadersStamped(t *testing.T) {
	var gotAuth, gotTenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get(TenantHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Post(context.Background(), "/api/agent/message/send", map[string]string{"text": "ok"}, "contoso", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "contoso", gotTenant)
}

func TestTenantHeaderOmittedWhenEmpty(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[TenantHeader]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.Get(context.Background(), "/api/agent/settings/flowserver", nil, "", nil))
	assert.False(t, present)
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Get(context.Background(), "/api/agent/knowledge/list", nil, "acme", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNonTransient4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad input"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Post(context.Background(), "/api/agent/knowledge", map[string]string{}, "acme", nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "bad input", httpErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	q := url.Values{"name": {"missing"}}
	err := c.Get(context.Background(), "/api/agent/knowledge/latest", q, "acme", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryExhaustionSurfacesLastError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Get(context.Background(), "/api/agent/documents", nil, "acme", nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHealthProbeCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:        srv.URL,
		APIKey:         "k",
		HealthInterval: time.Hour,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, c.Healthy(context.Background()))
	assert.True(t, c.Healthy(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	// ForceReconnect invalidates the cached probe
	c.ForceReconnect()
	assert.True(t, c.Healthy(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnLifetimeRotatesTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:      srv.URL,
		APIKey:       "k",
		ConnLifetime: 20 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, c.Get(context.Background(), "/x", nil, "acme", nil))
	c.mu.Lock()
	first := c.transport
	c.mu.Unlock()

	// Within the lifetime the pool is reused
	require.NoError(t, c.Get(context.Background(), "/x", nil, "acme", nil))
	c.mu.Lock()
	assert.Same(t, first, c.transport)
	c.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.Get(context.Background(), "/x", nil, "acme", nil))
	c.mu.Lock()
	assert.NotSame(t, first, c.transport)
	c.mu.Unlock()
}
