// Package engine wraps the durable workflow engine's client: lazy connection
// with settings fetched from the backend, workflow handles, schedules and
// worker construction. Every workflow started through this package carries
// tenant and system-scope flags in its memo.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

const settingsPath = "/api/agent/settings/flowserver"

var (
	// ErrScheduleExists is returned when creating a schedule whose id is taken.
	ErrScheduleExists = errors.New("schedule already exists")
	// ErrScheduleMissing is returned for operations on unknown schedules.
	ErrScheduleMissing = errors.New("schedule not found")
)

// Settings is the engine connection configuration served by the backend.
type Settings struct {
	HostPort  string `json:"hostPort"`
	Namespace string `json:"namespace"`
	APIKey    string `json:"apiKey,omitempty"`
}

// Options configures the engine client. Explicit HostPort/Namespace skip the
// backend settings fetch.
type Options struct {
	HostPort    string
	Namespace   string
	SettingsTTL time.Duration
	DialRetries int
}

// StartOptions describes one workflow start request.
type StartOptions struct {
	WorkflowType     string
	WorkflowID       string
	TaskQueue        string
	Tenant           string
	SystemScoped     bool
	Input            []any
	Memo             map[string]any
	RetryPolicy      *temporal.RetryPolicy
	ExecutionTimeout time.Duration
	IDReusePolicy    enumspb.WorkflowIdReusePolicy
}

// API is the engine surface consumed by capability services. Client is the
// production implementation; tests substitute fakes.
type API interface {
	StartWorkflow(ctx context.Context, opts StartOptions) (runID string, err error)
	SignalWorkflow(ctx context.Context, workflowID, name string, arg any) error
	QueryWorkflowRaw(ctx context.Context, workflowID, name string, args ...any) ([]byte, error)
	UpdateWorkflowRaw(ctx context.Context, workflowID, name string, args ...any) ([]byte, error)

	CreateSchedule(ctx context.Context, opts ScheduleOptions) error
	DescribeSchedule(ctx context.Context, id string) (*ScheduleDescription, error)
	PauseSchedule(ctx context.Context, id, note string) error
	UnpauseSchedule(ctx context.Context, id, note string) error
	TriggerSchedule(ctx context.Context, id string) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context) ([]string, error)
	BackfillSchedule(ctx context.Context, id string, start, end time.Time) error
}

// Client lazily dials the engine using settings from the backend, cached with
// a TTL. It is safe for concurrent use and shared across the platform.
type Client struct {
	http   *httpx.Client
	logger *zap.Logger
	opts   Options

	mu        sync.Mutex
	temporal  client.Client
	settings  *Settings
	fetchedAt time.Time
}

var _ API = (*Client)(nil)

// NewClient builds an unconnected engine client.
func NewClient(httpClient *httpx.Client, logger *zap.Logger, opts Options) *Client {
	if opts.SettingsTTL <= 0 {
		opts.SettingsTTL = 5 * time.Minute
	}
	if opts.DialRetries <= 0 {
		opts.DialRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, logger: logger, opts: opts}
}

// NewClientFromTemporal wraps an already-dialed Temporal client. Used by the
// platform in tests and local mode.
func NewClientFromTemporal(tc client.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{temporal: tc, logger: logger, opts: Options{SettingsTTL: 5 * time.Minute}}
}

func (e *Client) resolveSettings(ctx context.Context) (*Settings, error) {
	if e.opts.HostPort != "" {
		return &Settings{HostPort: e.opts.HostPort, Namespace: e.opts.Namespace}, nil
	}
	if e.settings != nil && time.Since(e.fetchedAt) < e.opts.SettingsTTL {
		return e.settings, nil
	}
	var s Settings
	if err := e.http.Get(ctx, settingsPath, nil, "", &s); err != nil {
		return nil, fmt.Errorf("fetch engine settings: %w", err)
	}
	e.settings = &s
	e.fetchedAt = time.Now()
	return &s, nil
}

// Temporal returns the connected engine client, dialing on first use with
// bounded retries.
func (e *Client) Temporal(ctx context.Context) (client.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.temporal != nil {
		return e.temporal, nil
	}

	settings, err := e.resolveSettings(ctx)
	if err != nil {
		return nil, err
	}

	dialOpts := client.Options{
		HostPort:  settings.HostPort,
		Namespace: settings.Namespace,
		Logger:    NewZapAdapter(e.logger),
	}
	if settings.APIKey != "" {
		dialOpts.Credentials = client.NewAPIKeyStaticCredentials(settings.APIKey)
	}

	var tc client.Client
	for attempt := 1; attempt <= e.opts.DialRetries; attempt++ {
		tc, err = client.Dial(dialOpts)
		if err == nil {
			e.temporal = tc
			return tc, nil
		}
		e.logger.Warn("Engine not ready, retrying",
			zap.Int("attempt", attempt),
			zap.String("host", settings.HostPort),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("dial engine at %s: %w", settings.HostPort, err)
}

// ForceReconnect drops the cached connection and settings.
func (e *Client) ForceReconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.temporal != nil {
		e.temporal.Close()
		e.temporal = nil
	}
	e.settings = nil
	e.fetchedAt = time.Time{}
}

// Close releases the underlying connection.
func (e *Client) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.temporal != nil {
		e.temporal.Close()
		e.temporal = nil
	}
}

// StartWorkflow starts a top-level workflow, stamping tenant and scope into
// the memo.
func (e *Client) StartWorkflow(ctx context.Context, opts StartOptions) (string, error) {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return "", err
	}
	memo := map[string]any{
		runctx.MemoTenantID:     opts.Tenant,
		runctx.MemoSystemScoped: opts.SystemScoped,
	}
	for k, v := range opts.Memo {
		memo[k] = v
	}
	startOpts := client.StartWorkflowOptions{
		ID:                       opts.WorkflowID,
		TaskQueue:                opts.TaskQueue,
		Memo:                     memo,
		RetryPolicy:              opts.RetryPolicy,
		WorkflowExecutionTimeout: opts.ExecutionTimeout,
	}
	if opts.IDReusePolicy != enumspb.WORKFLOW_ID_REUSE_POLICY_UNSPECIFIED {
		startOpts.WorkflowIDReusePolicy = opts.IDReusePolicy
	}
	run, err := tc.ExecuteWorkflow(ctx, startOpts, opts.WorkflowType, opts.Input...)
	if err != nil {
		return "", err
	}
	return run.GetRunID(), nil
}

// SignalWorkflow sends a signal to a workflow by id.
func (e *Client) SignalWorkflow(ctx context.Context, workflowID, name string, arg any) error {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return err
	}
	return tc.SignalWorkflow(ctx, workflowID, "", name, arg)
}

// QueryWorkflowRaw queries a workflow and returns the result re-encoded as
// JSON so callers can decode into their own types.
func (e *Client) QueryWorkflowRaw(ctx context.Context, workflowID, name string, args ...any) ([]byte, error) {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return nil, err
	}
	val, err := tc.QueryWorkflow(ctx, workflowID, "", name, args...)
	if err != nil {
		return nil, err
	}
	var out any
	if err := val.Get(&out); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UpdateWorkflowRaw executes a synchronous update and returns the result as
// JSON.
func (e *Client) UpdateWorkflowRaw(ctx context.Context, workflowID, name string, args ...any) ([]byte, error) {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return nil, err
	}
	handle, err := tc.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   workflowID,
		UpdateName:   name,
		Args:         args,
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return nil, err
	}
	var out any
	if err := handle.Get(ctx, &out); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// NewWorker constructs a worker on the given task queue.
func (e *Client) NewWorker(ctx context.Context, taskQueue string, opts worker.Options) (worker.Worker, error) {
	tc, err := e.Temporal(ctx)
	if err != nil {
		return nil, err
	}
	return worker.New(tc, taskQueue, opts), nil
}
