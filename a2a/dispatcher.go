// Package a2a implements agent-to-agent dispatch: signals, queries, updates
// and built-in chat against another workflow, addressed by id or by
// (type, tenant, suffix). Every dispatch is tenant-checked; crossing tenants
// requires a system-scoped caller.
package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/ident"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// ErrCrossTenant is returned when a non-system-scoped caller addresses a
// workflow in a foreign tenant.
var ErrCrossTenant = errors.New("cross-tenant dispatch requires a system-scoped agent")

// Target addresses one workflow. Either WorkflowID is set, or the triple
// (WorkflowType, Tenant, Suffix); Tenant defaults to the caller's tenant.
type Target struct {
	WorkflowID   string `json:"workflowId,omitempty"`
	WorkflowType string `json:"workflowType,omitempty"`
	Tenant       string `json:"tenant,omitempty"`
	Suffix       string `json:"suffix,omitempty"`
}

// Dispatcher sends engine primitives to other workflows.
type Dispatcher struct {
	engine engine.API
	acts   *Activities
}

// NewDispatcher builds the dispatch facade.
func NewDispatcher(engineAPI engine.API, acts *Activities) *Dispatcher {
	return &Dispatcher{engine: engineAPI, acts: acts}
}

// Resolve materializes the target workflow id and enforces tenant isolation
// for the caller.
func (d *Dispatcher) Resolve(rc *runctx.Context, target Target) (string, error) {
	id := target.WorkflowID
	if id == "" {
		tenant := target.Tenant
		if tenant == "" {
			var err error
			tenant, err = rc.RequireTenant()
			if err != nil {
				return "", err
			}
		}
		var err error
		id, err = ident.Build(tenant, target.WorkflowType, target.Suffix)
		if err != nil {
			return "", err
		}
	}
	parsed, err := ident.Parse(id)
	if err != nil {
		return "", err
	}
	if !rc.SystemScoped() && rc.TenantID() != "" && parsed.Tenant != rc.TenantID() {
		return "", fmt.Errorf("%w: %s -> %s", ErrCrossTenant, rc.TenantID(), parsed.Tenant)
	}
	return id, nil
}

// SendSignal fires a signal at the target. Fire-and-forget from the caller's
// perspective; delivery is durable once accepted.
func (d *Dispatcher) SendSignal(rc *runctx.Context, target Target, name string, arg any) error {
	id, err := d.Resolve(rc, target)
	if err != nil {
		return err
	}
	if rc.InWorkflow() {
		wctx := rc.Workflow()
		return workflow.SignalExternalWorkflow(wctx, id, "", name, arg).Get(wctx, nil)
	}
	return d.engine.SignalWorkflow(rc.Std(), id, name, arg)
}

// Query reads the target workflow's state through a registered query handler.
func Query[T any](d *Dispatcher, rc *runctx.Context, target Target, name string, args ...any) (T, error) {
	var out T
	id, err := d.Resolve(rc, target)
	if err != nil {
		return out, err
	}
	raw, err := executor.Execute(rc, ActivityQuery, []any{QueryRequest{WorkflowID: id, Name: name, Args: args}},
		func(ctx context.Context) ([]byte, error) {
			return d.engine.QueryWorkflowRaw(ctx, id, name, args...)
		})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode query result: %w", err)
	}
	return out, nil
}

// SendChatToBuiltIn hands a chat message to another workflow type's
// registered handler and returns the first reply it captures. The handler
// runs as an isolated activity on the target's task queue, so it reaches the
// worker hosting the target even when that is another process.
func (d *Dispatcher) SendChatToBuiltIn(rc *runctx.Context, workflowType, text string) (*messaging.Message, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	queue, err := builtInChatQueue(d.acts.reg, workflowType, tenant)
	if err != nil {
		return nil, err
	}
	req := ChatRequest{WorkflowType: workflowType, Tenant: tenant, Text: text}
	return executor.ExecuteOn(rc, queue, ActivityChat, []any{req}, func(ctx context.Context) (*messaging.Message, error) {
		return d.acts.SendChat(ctx, req)
	})
}

// builtInChatQueue derives the task queue owning workflowType. Targets not in
// the local registry are assumed tenant-scoped; system-scoped targets share
// one queue per type.
func builtInChatQueue(reg *registry.Registry, workflowType, tenant string) (string, error) {
	systemScoped := false
	if agent, ok := reg.AgentForWorkflowType(workflowType); ok {
		systemScoped = agent.SystemScoped
	}
	return ident.TaskQueue(workflowType, systemScoped, tenant)
}

// Update executes a synchronous update on the target and decodes its result.
func Update[T any](d *Dispatcher, rc *runctx.Context, target Target, name string, args ...any) (T, error) {
	var out T
	id, err := d.Resolve(rc, target)
	if err != nil {
		return out, err
	}
	raw, err := executor.Execute(rc, ActivityUpdate, []any{QueryRequest{WorkflowID: id, Name: name, Args: args}},
		func(ctx context.Context) ([]byte, error) {
			return d.engine.UpdateWorkflowRaw(ctx, id, name, args...)
		})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode update result: %w", err)
	}
	return out, nil
}
