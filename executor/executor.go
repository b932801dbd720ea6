// Package executor implements the context-aware dispatch used by every
// capability service: inside workflow code the operation runs as a named,
// pre-registered activity to preserve determinism; outside it runs directly
// against the service.
package executor

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/metrics"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// DefaultActivityOptions are applied to every capability activity dispatch.
func DefaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
}

// Execute routes one capability call. From a workflow invocation the named
// activity is executed with the default options and its result decoded into
// T; from an activity or plain caller, direct is invoked with the standard
// context.
func Execute[T any](rc *runctx.Context, activityName string, args []any, direct func(ctx context.Context) (T, error)) (T, error) {
	return ExecuteOn(rc, "", activityName, args, direct)
}

// ExecuteOn is Execute pinned to a task queue: the activity dispatch runs on
// the named queue instead of the hosting workflow's, so the call reaches the
// worker owning the target. Empty taskQueue behaves like Execute.
func ExecuteOn[T any](rc *runctx.Context, taskQueue, activityName string, args []any, direct func(ctx context.Context) (T, error)) (T, error) {
	var out T
	if rc != nil && rc.InWorkflow() {
		metrics.ExecutorDispatches.WithLabelValues(activityName, "activity").Inc()
		opts := DefaultActivityOptions()
		opts.TaskQueue = taskQueue
		actx := workflow.WithActivityOptions(rc.Workflow(), opts)
		err := workflow.ExecuteActivity(actx, activityName, args...).Get(rc.Workflow(), &out)
		return out, err
	}
	metrics.ExecutorDispatches.WithLabelValues(activityName, "direct").Inc()
	var ctx context.Context
	if rc != nil {
		ctx = rc.Std()
	} else {
		ctx = context.Background()
	}
	return direct(ctx)
}

// Run is Execute for operations without a result.
func Run(rc *runctx.Context, activityName string, args []any, direct func(ctx context.Context) error) error {
	if rc != nil && rc.InWorkflow() {
		metrics.ExecutorDispatches.WithLabelValues(activityName, "activity").Inc()
		actx := workflow.WithActivityOptions(rc.Workflow(), DefaultActivityOptions())
		return workflow.ExecuteActivity(actx, activityName, args...).Get(rc.Workflow(), nil)
	}
	metrics.ExecutorDispatches.WithLabelValues(activityName, "direct").Inc()
	var ctx context.Context
	if rc != nil {
		ctx = rc.Std()
	} else {
		ctx = context.Background()
	}
	return direct(ctx)
}
