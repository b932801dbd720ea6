package a2a

import (
	"context"
	"errors"
	"fmt"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// Activity names pre-registered on every worker.
const (
	ActivityQuery  = "A2AActivity.Query"
	ActivityUpdate = "A2AActivity.Update"
	ActivityChat   = "A2AActivity.SendChat"
)

// ErrNoHandler is returned when built-in chat targets a workflow type with no
// registered message handler.
var ErrNoHandler = errors.New("workflow type has no registered message handler")

// QueryRequest is the activity payload for query and update dispatch.
type QueryRequest struct {
	WorkflowID string `json:"workflowId"`
	Name       string `json:"name"`
	Args       []any  `json:"args,omitempty"`
}

// ChatRequest runs a built-in workflow's message handler in-process and
// captures its first reply.
type ChatRequest struct {
	WorkflowType string `json:"workflowType"`
	Tenant       string `json:"tenant"`
	Text         string `json:"text"`
	Data         any    `json:"data,omitempty"`
}

// Activities hosts the A2A activity implementations.
type Activities struct {
	engine engine.API
	reg    *registry.Registry
}

// NewActivities binds the A2A activities to the engine client and registry.
func NewActivities(engineAPI engine.API, reg *registry.Registry) *Activities {
	return &Activities{engine: engineAPI, reg: reg}
}

// Query performs a workflow query from activity context.
func (a *Activities) Query(ctx context.Context, req QueryRequest) ([]byte, error) {
	return a.engine.QueryWorkflowRaw(ctx, req.WorkflowID, req.Name, req.Args...)
}

// Update performs a synchronous workflow update from activity context.
func (a *Activities) Update(ctx context.Context, req QueryRequest) ([]byte, error) {
	return a.engine.UpdateWorkflowRaw(ctx, req.WorkflowID, req.Name, req.Args...)
}

// SendChat runs the target workflow type's registered handler in an isolated
// invocation and returns the first reply it issues.
func (a *Activities) SendChat(ctx context.Context, req ChatRequest) (*messaging.Message, error) {
	wf, ok := a.reg.WorkflowByType(req.WorkflowType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, req.WorkflowType)
	}
	handler, ok := wf.Handler.(messaging.Handler)
	if !ok || handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, req.WorkflowType)
	}

	rc := runctx.ForActivity(ctx, runctx.Info{
		TenantID:     req.Tenant,
		AgentName:    wf.Agent,
		WorkflowType: req.WorkflowType,
	}, a.reg)

	var reply *messaging.Message
	umc := messaging.NewCapturingUserMessageContext(rc, messaging.Message{
		TenantID: req.Tenant,
		Text:     req.Text,
		Data:     req.Data,
	}, func(msg messaging.Message) {
		if reply == nil {
			reply = &msg
		}
	})
	if err := handler(umc); err != nil {
		return nil, fmt.Errorf("built-in chat handler: %w", err)
	}
	return reply, nil
}
