package usage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
)

func TestReportDeliversInBackground(t *testing.T) {
	var mu sync.Mutex
	var tenants []string
	var records []Record
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		mu.Lock()
		tenants = append(tenants, r.Header.Get(httpx.TenantHeader))
		records = append(records, rec)
		mu.Unlock()
	}))
	defer server.Close()

	client, err := httpx.New(httpx.Config{BaseURL: server.URL, APIKey: "k"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	reporter := NewReporter(client, zaptest.NewLogger(t), Config{})

	reporter.Report(Record{TenantID: "acme", Model: "gpt", InputTokens: 10})
	reporter.Close(5 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, records, 1)
	assert.Equal(t, "acme", tenants[0])
	assert.Equal(t, 10, records[0].InputTokens)
	assert.False(t, records[0].At.IsZero())
}

func TestReportFailureIsSwallowed(t *testing.T) {
	client, err := httpx.New(httpx.Config{
		BaseURL:        "http://127.0.0.1:1",
		APIKey:         "k",
		MaxAttempts:    1,
		RetryBaseDelay: time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	reporter := NewReporter(client, zaptest.NewLogger(t), Config{Timeout: time.Second})

	// Must not panic or block.
	reporter.Report(Record{TenantID: "acme"})
	reporter.Close(5 * time.Second)
}

func TestRateLimitDropsExcess(t *testing.T) {
	var mu sync.Mutex
	delivered := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}))
	defer server.Close()

	client, err := httpx.New(httpx.Config{BaseURL: server.URL, APIKey: "k"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	reporter := NewReporter(client, zaptest.NewLogger(t), Config{MaxPerSecond: 1})

	for range 10 {
		reporter.Report(Record{TenantID: "acme"})
	}
	reporter.Close(5 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, delivered, 2, "burst beyond the limit must be dropped")
	assert.GreaterOrEqual(t, delivered, 1)
}

func TestReportAfterCloseIsNoop(t *testing.T) {
	client, err := httpx.New(httpx.Config{BaseURL: "http://127.0.0.1:1", APIKey: "k"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	reporter := NewReporter(client, zaptest.NewLogger(t), Config{})
	reporter.Close(time.Second)
	reporter.Report(Record{TenantID: "acme"})
}
