// Package runctx carries the per-invocation execution context: tenant, agent,
// workflow identity and whether the call site runs inside workflow code,
// activity code, or neither. The worker installs one Context per invocation
// and capability services consult it to pick their dispatch path.
package runctx

import (
	"context"
	"errors"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/ident"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
)

// ErrNoAmbientContext is returned when a tenant-scoped API is used outside
// workflow or activity code and no default tenant is available.
var ErrNoAmbientContext = errors.New("no ambient workflow or activity context")

// Memo keys stamped on every workflow started by the runtime so downstream
// validators can read tenancy without reparsing ids.
const (
	MemoTenantID     = "tenantId"
	MemoSystemScoped = "systemScoped"
)

// Kind identifies the execution environment of the current invocation.
type Kind int

const (
	KindClient Kind = iota
	KindWorkflow
	KindActivity
)

// Info is the identity snapshot of the current invocation.
type Info struct {
	TenantID     string
	AgentName    string
	WorkflowType string
	WorkflowID   string
	RunID        string
	SystemScoped bool
}

// Context is the ambient invocation context threaded through capability
// services. Exactly one of the workflow or standard contexts is active.
type Context struct {
	kind Kind
	info Info
	wctx workflow.Context
	ctx  context.Context
	reg  *registry.Registry
}

// ForWorkflow wraps a workflow invocation.
func ForWorkflow(wctx workflow.Context, info Info, reg *registry.Registry) *Context {
	return &Context{kind: KindWorkflow, info: info, wctx: wctx, reg: reg}
}

// ForActivity wraps an activity invocation.
func ForActivity(ctx context.Context, info Info, reg *registry.Registry) *Context {
	return &Context{kind: KindActivity, info: info, ctx: ctx, reg: reg}
}

// ForClient wraps a plain caller outside the engine. Info may carry the
// agent's default tenant; system-scoped agents have none here.
func ForClient(ctx context.Context, info Info, reg *registry.Registry) *Context {
	return &Context{kind: KindClient, info: info, ctx: ctx, reg: reg}
}

// resolveWorkflowType maps an id's type component onto a registered workflow
// type. Workflow types conventionally contain one colon (`agent:name`), so a
// full id carries the type across its second and third components; the
// registry disambiguates.
func resolveWorkflowType(reg *registry.Registry, workflowID, fallback string) string {
	if reg == nil {
		return fallback
	}
	parts := strings.Split(workflowID, ":")
	if len(parts) >= 3 {
		candidate := parts[1] + ":" + parts[2]
		if _, ok := reg.WorkflowByType(candidate); ok {
			return candidate
		}
	}
	return fallback
}

// FromWorkflow derives a Context from a running workflow: tenant and type are
// parsed from the workflow id, the system-scoped flag from the memo.
func FromWorkflow(wctx workflow.Context, reg *registry.Registry) (*Context, error) {
	wfInfo := workflow.GetInfo(wctx)
	parsed, err := ident.Parse(wfInfo.WorkflowExecution.ID)
	if err != nil {
		return nil, err
	}
	info := Info{
		TenantID:     parsed.Tenant,
		WorkflowType: resolveWorkflowType(reg, wfInfo.WorkflowExecution.ID, parsed.WorkflowType),
		WorkflowID:   wfInfo.WorkflowExecution.ID,
		RunID:        wfInfo.WorkflowExecution.RunID,
	}
	if memo := wfInfo.Memo; memo != nil {
		if p, ok := memo.Fields[MemoSystemScoped]; ok {
			_ = converter.GetDefaultDataConverter().FromPayload(p, &info.SystemScoped)
		}
		if p, ok := memo.Fields[MemoTenantID]; ok {
			var tenant string
			if converter.GetDefaultDataConverter().FromPayload(p, &tenant) == nil && tenant != "" {
				info.TenantID = tenant
			}
		}
	}
	if reg != nil {
		if agent, ok := reg.AgentForWorkflowType(info.WorkflowType); ok {
			info.AgentName = agent.Name
			info.SystemScoped = info.SystemScoped || agent.SystemScoped
		}
	}
	return ForWorkflow(wctx, info, reg), nil
}

// FromActivity derives a Context from a running activity using the hosting
// workflow's id.
func FromActivity(ctx context.Context, reg *registry.Registry) (*Context, error) {
	actInfo := activity.GetInfo(ctx)
	parsed, err := ident.Parse(actInfo.WorkflowExecution.ID)
	if err != nil {
		return nil, err
	}
	info := Info{
		TenantID:     parsed.Tenant,
		WorkflowType: resolveWorkflowType(reg, actInfo.WorkflowExecution.ID, parsed.WorkflowType),
		WorkflowID:   actInfo.WorkflowExecution.ID,
		RunID:        actInfo.WorkflowExecution.RunID,
	}
	if reg != nil {
		if agent, ok := reg.AgentForWorkflowType(info.WorkflowType); ok {
			info.AgentName = agent.Name
			info.SystemScoped = agent.SystemScoped
		}
	}
	return ForActivity(ctx, info, reg), nil
}

func (c *Context) Kind() Kind         { return c.kind }
func (c *Context) InWorkflow() bool   { return c.kind == KindWorkflow }
func (c *Context) InActivity() bool   { return c.kind == KindActivity }
func (c *Context) Info() Info         { return c.info }
func (c *Context) TenantID() string   { return c.info.TenantID }
func (c *Context) AgentName() string  { return c.info.AgentName }
func (c *Context) WorkflowID() string { return c.info.WorkflowID }
func (c *Context) RunID() string      { return c.info.RunID }
func (c *Context) SystemScoped() bool { return c.info.SystemScoped }

// WorkflowType returns the type component of the hosting workflow id.
func (c *Context) WorkflowType() string { return c.info.WorkflowType }

// Workflow returns the workflow context. Only valid when InWorkflow.
func (c *Context) Workflow() workflow.Context { return c.wctx }

// Std returns the standard context for activity and client invocations.
func (c *Context) Std() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// RequireTenant returns the tenant owning the current invocation, or
// ErrNoAmbientContext when none can be resolved. This is the failure path for
// system-scoped agents calling tenant-scoped services outside the engine.
func (c *Context) RequireTenant() (string, error) {
	if c == nil || c.info.TenantID == "" {
		return "", ErrNoAmbientContext
	}
	return c.info.TenantID, nil
}

// CurrentWorkflow resolves the registered workflow definition matching the
// invocation's workflow type.
func (c *Context) CurrentWorkflow() (*registry.WorkflowDefinition, error) {
	if c == nil || c.reg == nil || c.info.WorkflowType == "" {
		return nil, ErrNoAmbientContext
	}
	wf, ok := c.reg.WorkflowByType(c.info.WorkflowType)
	if !ok {
		return nil, ErrNoAmbientContext
	}
	return wf, nil
}

// TryGetAgent looks up a registered agent by name.
func (c *Context) TryGetAgent(name string) (*registry.AgentDefinition, bool) {
	if c == nil || c.reg == nil {
		return nil, false
	}
	return c.reg.Agent(name)
}

// Registry exposes the registry for facade-level lookups.
func (c *Context) Registry() *registry.Registry { return c.reg }
