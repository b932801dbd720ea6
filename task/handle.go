package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/ident"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
)

// Handle is the external facade over one task workflow, used by callers
// outside the engine (approval UIs, operator tooling).
type Handle struct {
	engine engine.API
	id     string
}

// NewHandle wraps an existing task workflow id.
func NewHandle(engineAPI engine.API, workflowID string) *Handle {
	return &Handle{engine: engineAPI, id: workflowID}
}

// ForTask resolves the task workflow id for an agent's task and returns its
// handle.
func ForTask(engineAPI engine.API, reg *registry.Registry, tenant, agentName, taskID string) (*Handle, error) {
	agent, ok := reg.Agent(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTaskWorkflow, agentName)
	}
	var workflowType string
	for _, wf := range agent.Workflows {
		if wf.IsTask {
			workflowType = wf.WorkflowType
			break
		}
	}
	if workflowType == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoTaskWorkflow, agentName)
	}
	id, err := ident.Build(tenant, workflowType, taskID)
	if err != nil {
		return nil, err
	}
	return NewHandle(engineAPI, id), nil
}

// ID returns the task workflow id.
func (h *Handle) ID() string { return h.id }

// GetInfo queries the task's current snapshot.
func (h *Handle) GetInfo(ctx context.Context) (*Info, error) {
	raw, err := h.engine.QueryWorkflowRaw(ctx, h.id, QueryGetTaskInfo)
	if err != nil {
		return nil, fmt.Errorf("query task info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode task info: %w", err)
	}
	return &info, nil
}

// UpdateDraft replaces the task's draft while it is pending.
func (h *Handle) UpdateDraft(ctx context.Context, text string) error {
	return h.engine.SignalWorkflow(ctx, h.id, SignalUpdateDraft, text)
}

// PerformAction completes the task with a named action.
func (h *Handle) PerformAction(ctx context.Context, action, comment string) error {
	return h.engine.SignalWorkflow(ctx, h.id, SignalPerformAction, ActionRequest{Action: action, Comment: comment})
}

// Approve completes the task with the approve action.
func (h *Handle) Approve(ctx context.Context, comment string) error {
	return h.PerformAction(ctx, "approve", comment)
}

// Reject completes the task with the reject action.
func (h *Handle) Reject(ctx context.Context, comment string) error {
	return h.PerformAction(ctx, "reject", comment)
}

// IsCompleted reports whether the task reached its terminal state.
func (h *Handle) IsCompleted(ctx context.Context) (bool, error) {
	info, err := h.GetInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsCompleted, nil
}
