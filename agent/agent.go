// Package agent is the registration surface developers use to declare agents
// and their workflows, and the runner that turns each declaration into a
// long-running conversational workflow.
package agent

import (
	"errors"
	"fmt"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
)

var (
	ErrNoWorkflows = errors.New("agent declares no workflows")
	ErrNoHandler   = errors.New("workflow declares no message handler")
)

// Agent is a mutable agent declaration. Declarations become immutable when
// the platform registers them.
type Agent struct {
	name         string
	systemScoped bool
	tenant       string
	workflows    []*Workflow
}

// New starts an agent declaration.
func New(name string) *Agent {
	return &Agent{name: name}
}

// SystemScoped marks the agent's workers as shared across tenants.
func (a *Agent) SystemScoped() *Agent {
	a.systemScoped = true
	return a
}

// WithTenant binds the agent to a tenant, overriding the platform default.
func (a *Agent) WithTenant(tenant string) *Agent {
	a.tenant = tenant
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Tenant returns the explicitly bound tenant, if any.
func (a *Agent) Tenant() string { return a.tenant }

// AddWorkflow declares a named workflow on the agent.
func (a *Agent) AddWorkflow(shortName string) *Workflow {
	wf := &Workflow{agent: a, shortName: shortName, workers: 1}
	a.workflows = append(a.workflows, wf)
	return wf
}

// AddTaskWorkflow declares the agent's HITL task workflow.
func (a *Agent) AddTaskWorkflow() *Workflow {
	wf := a.AddWorkflow(registry.TaskWorkflowShortName)
	wf.isTask = true
	return wf
}

// Workflow is a mutable workflow declaration.
type Workflow struct {
	agent     *Agent
	shortName string
	workers   int
	isDefault bool
	isTask    bool
	handler   messaging.Handler
}

// WithWorkers sets the worker concurrency for this workflow's task queue.
func (w *Workflow) WithWorkers(n int) *Workflow {
	if n >= 1 {
		w.workers = n
	}
	return w
}

// AsDefault marks this workflow as the agent's default conversational
// workflow.
func (w *Workflow) AsDefault() *Workflow {
	w.isDefault = true
	return w
}

// OnUserMessage sets the handler invoked for each inbound user message.
func (w *Workflow) OnUserMessage(h messaging.Handler) *Workflow {
	w.handler = h
	return w
}

// Agent returns the owning agent declaration, for chained registration.
func (w *Workflow) Agent() *Agent { return w.agent }

// Definition freezes the declaration into registry form. defaultTenant
// applies when the agent is neither system-scoped nor explicitly bound.
func (a *Agent) Definition(defaultTenant string) (*registry.AgentDefinition, error) {
	if len(a.workflows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoWorkflows, a.name)
	}
	tenant := a.tenant
	if tenant == "" && !a.systemScoped {
		tenant = defaultTenant
	}
	def := &registry.AgentDefinition{
		Name:         a.name,
		SystemScoped: a.systemScoped,
		Tenant:       tenant,
	}
	for _, wf := range a.workflows {
		if wf.handler == nil && !wf.isTask {
			return nil, fmt.Errorf("%w: %s:%s", ErrNoHandler, a.name, wf.shortName)
		}
		def.Workflows = append(def.Workflows, &registry.WorkflowDefinition{
			Agent:        a.name,
			ShortName:    wf.shortName,
			WorkflowType: fmt.Sprintf("%s:%s", a.name, wf.shortName),
			Workers:      wf.workers,
			IsDefault:    wf.isDefault,
			IsTask:       wf.isTask,
			Handler:      wf.handler,
		})
	}
	return def, nil
}
