package task

import (
	"context"

	"github.com/google/uuid"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/metrics"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// Workflows hosts the task workflow implementation registered on every
// worker whose agent declares a task workflow.
type Workflows struct {
	reg *registry.Registry
	svc *messaging.Service
}

// NewWorkflows binds the task workflow to the registry and delivery service.
func NewWorkflows(reg *registry.Registry, svc *messaging.Service) *Workflows {
	return &Workflows{reg: reg, svc: svc}
}

// TaskWorkflow runs one HITL task to completion: it accepts draft updates and
// a single completing action, or expires after the optional timeout.
func (w *Workflows) TaskWorkflow(ctx workflow.Context, req Request) (*Result, error) {
	logger := workflow.GetLogger(ctx)

	rc, err := runctx.FromWorkflow(ctx, w.reg)
	if err != nil {
		return nil, err
	}
	if req.TaskID == "" {
		var id string
		if err := workflow.SideEffect(ctx, func(workflow.Context) any {
			return uuid.NewString()
		}).Get(&id); err != nil {
			return nil, err
		}
		req.TaskID = id
	}

	st := newState(req)
	if err := workflow.SetQueryHandler(ctx, QueryGetTaskInfo, func() (Info, error) {
		return st.info(), nil
	}); err != nil {
		return nil, err
	}

	w.notifyCreator(rc, req)
	w.pumpSignals(ctx, st)

	if req.Timeout > 0 {
		ok, err := workflow.AwaitWithTimeout(ctx, req.Timeout, func() bool { return st.completed })
		if err != nil {
			return nil, err
		}
		if !ok {
			st.expire(workflow.Now(ctx))
			logger.Info("Task timed out", "task_id", req.TaskID)
			metrics.TasksCompleted.WithLabelValues("timeout").Inc()
			return st.result(), nil
		}
	} else if err := workflow.Await(ctx, func() bool { return st.completed }); err != nil {
		return nil, err
	}

	logger.Info("Task completed",
		"task_id", req.TaskID,
		"action", st.action,
	)
	metrics.TasksCompleted.WithLabelValues("action").Inc()
	return st.result(), nil
}

// notifyCreator tells the creating workflow's participant channel that the
// task is ready. Delivery failure never fails the task.
func (w *Workflows) notifyCreator(rc *runctx.Context, req Request) {
	if req.CreatorWorkflowID == "" {
		return
	}
	msg := messaging.Message{
		TenantID:      rc.TenantID(),
		ParticipantID: req.ParticipantID,
		Scope:         "task",
		Data: map[string]any{
			"event":             "task-created",
			"taskId":            req.TaskID,
			"title":             req.Title,
			"creatorWorkflowId": req.CreatorWorkflowID,
		},
	}
	err := executor.Run(rc, messaging.ActivitySend, []any{msg}, func(ctx context.Context) error {
		if w.svc == nil {
			return nil
		}
		return w.svc.Send(ctx, msg)
	})
	if err != nil {
		workflow.GetLogger(rc.Workflow()).Warn("Task notification failed",
			"task_id", req.TaskID,
			"error", err,
		)
	}
}

// pumpSignals drains task signals until the state machine completes. Signals
// arriving after completion are logged and ignored.
func (w *Workflows) pumpSignals(ctx workflow.Context, st *state) {
	updateCh := workflow.GetSignalChannel(ctx, SignalUpdateDraft)
	actionCh := workflow.GetSignalChannel(ctx, SignalPerformAction)
	approveCh := workflow.GetSignalChannel(ctx, SignalApprove)
	rejectCh := workflow.GetSignalChannel(ctx, SignalReject)

	workflow.Go(ctx, func(gctx workflow.Context) {
		logger := workflow.GetLogger(gctx)
		for !st.completed {
			selector := workflow.NewSelector(gctx)
			selector.AddReceive(updateCh, func(c workflow.ReceiveChannel, _ bool) {
				var text string
				c.Receive(gctx, &text)
				if !st.updateDraft(text) {
					logger.Warn("Draft update ignored, task already completed",
						"task_id", st.req.TaskID,
					)
				}
			})
			selector.AddReceive(actionCh, func(c workflow.ReceiveChannel, _ bool) {
				var ar ActionRequest
				c.Receive(gctx, &ar)
				w.apply(gctx, st, ar)
			})
			selector.AddReceive(approveCh, func(c workflow.ReceiveChannel, _ bool) {
				var comment string
				c.Receive(gctx, &comment)
				w.apply(gctx, st, ActionRequest{Action: "approve", Comment: comment})
			})
			selector.AddReceive(rejectCh, func(c workflow.ReceiveChannel, _ bool) {
				var comment string
				c.Receive(gctx, &comment)
				w.apply(gctx, st, ActionRequest{Action: "reject", Comment: comment})
			})
			selector.Select(gctx)
		}
	})
}

// apply runs one action through the state machine. Invalid actions are
// ignored with a warning; signals have no return channel to reject on.
func (w *Workflows) apply(ctx workflow.Context, st *state, ar ActionRequest) {
	if !st.perform(ar, workflow.Now(ctx)) {
		workflow.GetLogger(ctx).Warn("Action ignored",
			"task_id", st.req.TaskID,
			"action", ar.Action,
			"completed", st.completed,
		)
	}
}
