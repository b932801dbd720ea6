// Package registry holds the process-wide catalog of registered agents and
// their workflow definitions. The platform owns the registry; capability
// services read from it to locate configuration for the current workflow.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrAgentExists      = errors.New("agent already registered")
	ErrWorkflowExists   = errors.New("workflow type already registered")
	ErrAgentNameEmpty   = errors.New("agent name must not be empty")
	ErrNoDefaultMissing = errors.New("agent has no default workflow")
)

// TaskWorkflowShortName is the reserved short name for HITL task workflows.
const TaskWorkflowShortName = "Task Workflow"

// WorkflowDefinition describes one registered workflow type.
type WorkflowDefinition struct {
	// Agent is the owning agent's name.
	Agent string
	// ShortName is the workflow's name without the agent prefix.
	ShortName string
	// WorkflowType is `{agent}:{shortName}` and matches the second component
	// of workflow ids hosted by this definition.
	WorkflowType string
	// Workers is the worker concurrency for this workflow's task queue.
	Workers int
	// IsDefault marks the agent's default conversational workflow.
	IsDefault bool
	// IsTask marks a HITL task workflow definition.
	IsTask bool
	// Handler is the registered message handler (or task hook). The agent
	// package defines the concrete handler signature.
	Handler any
}

// AgentDefinition describes one registered agent and its workflows.
type AgentDefinition struct {
	Name string
	// SystemScoped agents process executions from any tenant.
	SystemScoped bool
	// Tenant is the default tenant from the agent's credentials. Empty for
	// system-scoped agents, which resolve tenant from the ambient context.
	Tenant    string
	Workflows []*WorkflowDefinition
}

// DefaultWorkflow returns the agent's default workflow definition.
func (a *AgentDefinition) DefaultWorkflow() (*WorkflowDefinition, error) {
	for _, wf := range a.Workflows {
		if wf.IsDefault {
			return wf, nil
		}
	}
	for _, wf := range a.Workflows {
		if !wf.IsTask {
			return wf, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDefaultMissing, a.Name)
}

// Registry is a thread-safe catalog of agents keyed by name and workflow
// definitions keyed by workflow type.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*AgentDefinition
	byType  map[string]*WorkflowDefinition
}

func New() *Registry {
	return &Registry{
		agents: make(map[string]*AgentDefinition),
		byType: make(map[string]*WorkflowDefinition),
	}
}

// RegisterAgent adds an agent and all of its workflow definitions. Agents are
// immutable once the platform starts; re-registration is an error.
func (r *Registry) RegisterAgent(a *AgentDefinition) error {
	if a == nil || a.Name == "" {
		return ErrAgentNameEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAgentExists, a.Name)
	}
	for _, wf := range a.Workflows {
		if _, ok := r.byType[wf.WorkflowType]; ok {
			return fmt.Errorf("%w: %s", ErrWorkflowExists, wf.WorkflowType)
		}
	}
	r.agents[a.Name] = a
	for _, wf := range a.Workflows {
		r.byType[wf.WorkflowType] = wf
	}
	return nil
}

// Agent returns the agent definition registered under name.
func (r *Registry) Agent(name string) (*AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// WorkflowByType returns the workflow definition for a workflow type.
func (r *Registry) WorkflowByType(workflowType string) (*WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.byType[workflowType]
	return wf, ok
}

// Agents returns a snapshot of all registered agents.
func (r *Registry) Agents() []*AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AgentDefinition, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// AgentForWorkflowType resolves the owning agent of a workflow type.
func (r *Registry) AgentForWorkflowType(workflowType string) (*AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.byType[workflowType]
	if !ok {
		return nil, false
	}
	a, ok := r.agents[wf.Agent]
	return a, ok
}
