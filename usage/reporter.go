// Package usage reports consumption records to the backend. Reporting is
// fire-and-forget: it never blocks the caller and failures are logged, not
// returned.
package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/metrics"
)

const reportPath = "/api/agent/usage/report"

// Record is one usage entry.
type Record struct {
	TenantID     string         `json:"tenantId"`
	Agent        string         `json:"agent,omitempty"`
	WorkflowType string         `json:"workflowType,omitempty"`
	Model        string         `json:"model,omitempty"`
	InputTokens  int            `json:"inputTokens,omitempty"`
	OutputTokens int            `json:"outputTokens,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	At           time.Time      `json:"at,omitempty"`
}

// Config tunes the reporter.
type Config struct {
	// MaxPerSecond caps the report rate; excess records are dropped with a
	// warning. Zero means 50.
	MaxPerSecond float64
	// Timeout bounds each report request. Zero means 10s.
	Timeout time.Duration
}

// Reporter posts usage records in the background.
type Reporter struct {
	http    *httpx.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	timeout time.Duration

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// NewReporter builds a reporter over the shared backend client.
func NewReporter(httpClient *httpx.Client, logger *zap.Logger, cfg Config) *Reporter {
	if cfg.MaxPerSecond <= 0 {
		cfg.MaxPerSecond = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		http:    httpClient,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), int(cfg.MaxPerSecond)),
		timeout: cfg.Timeout,
		closed:  make(chan struct{}),
	}
}

// Report enqueues one record. It returns immediately; delivery happens in the
// background and failures are logged as warnings.
func (r *Reporter) Report(record Record) {
	select {
	case <-r.closed:
		return
	default:
	}
	if !r.limiter.Allow() {
		metrics.UsageReports.WithLabelValues("dropped").Inc()
		r.logger.Warn("Usage report dropped, rate limit exceeded",
			zap.String("tenant", record.TenantID),
		)
		return
	}
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.http.Post(ctx, reportPath, record, record.TenantID, nil); err != nil {
			metrics.UsageReports.WithLabelValues("error").Inc()
			r.logger.Warn("Usage report failed",
				zap.String("tenant", record.TenantID),
				zap.Error(err),
			)
			return
		}
		metrics.UsageReports.WithLabelValues("ok").Inc()
	}()
}

// Close stops accepting records and waits up to grace for in-flight reports.
func (r *Reporter) Close(grace time.Duration) {
	r.once.Do(func() { close(r.closed) })
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		r.logger.Warn("Usage reporter shutdown grace elapsed with reports in flight")
	}
}
