package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/engine"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/ident"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// ErrNoTaskWorkflow is returned when the owning agent has not registered a
// task workflow.
var ErrNoTaskWorkflow = errors.New("agent has no task workflow registered")

// TaskWorkflowType returns the workflow type hosting an agent's tasks.
func TaskWorkflowType(agentName string) string {
	return fmt.Sprintf("%s:%s", agentName, registry.TaskWorkflowShortName)
}

// Starter launches task workflows. From workflow code the task starts as an
// abandoned child workflow so it survives parent close; outside, it starts as
// a top-level workflow through the engine client.
type Starter struct {
	engine engine.API
	reg    *registry.Registry
}

// NewStarter builds a starter over the engine client and registry.
func NewStarter(engineAPI engine.API, reg *registry.Registry) *Starter {
	return &Starter{engine: engineAPI, reg: reg}
}

// Start launches one task for the agent owning the current invocation and
// returns the task workflow id `{tenant}:{agent}:Task Workflow:{taskId}`.
func (s *Starter) Start(rc *runctx.Context, req Request) (string, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return "", err
	}
	agent, ok := rc.TryGetAgent(rc.AgentName())
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoTaskWorkflow, rc.AgentName())
	}
	taskWf := s.taskDefinition(agent)
	if taskWf == nil {
		return "", fmt.Errorf("%w: %s", ErrNoTaskWorkflow, agent.Name)
	}

	if req.TaskID == "" {
		if rc.InWorkflow() {
			if err := workflow.SideEffect(rc.Workflow(), func(workflow.Context) any {
				return uuid.NewString()
			}).Get(&req.TaskID); err != nil {
				return "", err
			}
		} else {
			req.TaskID = uuid.NewString()
		}
	}
	if req.CreatorWorkflowID == "" {
		req.CreatorWorkflowID = rc.WorkflowID()
	}

	workflowID, err := ident.Build(tenant, taskWf.WorkflowType, req.TaskID)
	if err != nil {
		return "", err
	}
	queue, err := ident.TaskQueue(taskWf.WorkflowType, agent.SystemScoped, tenant)
	if err != nil {
		return "", err
	}

	if rc.InWorkflow() {
		return workflowID, s.startChild(rc, taskWf.WorkflowType, workflowID, queue, tenant, agent.SystemScoped, req)
	}
	_, err = s.engine.StartWorkflow(rc.Std(), engine.StartOptions{
		WorkflowType: taskWf.WorkflowType,
		WorkflowID:   workflowID,
		TaskQueue:    queue,
		Tenant:       tenant,
		SystemScoped: agent.SystemScoped,
		Input:        []any{req},
	})
	if err != nil {
		return "", fmt.Errorf("start task workflow: %w", err)
	}
	return workflowID, nil
}

func (s *Starter) startChild(rc *runctx.Context, workflowType, workflowID, queue, tenant string, systemScoped bool, req Request) error {
	wctx := rc.Workflow()
	cctx := workflow.WithChildOptions(wctx, workflow.ChildWorkflowOptions{
		WorkflowID:        workflowID,
		TaskQueue:         queue,
		ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
		Memo: map[string]any{
			runctx.MemoTenantID:     tenant,
			runctx.MemoSystemScoped: systemScoped,
		},
	})
	fut := workflow.ExecuteChildWorkflow(cctx, workflowType, req)
	// Wait only for the child to be scheduled; the task outlives the parent.
	var exec workflow.Execution
	if err := fut.GetChildWorkflowExecution().Get(wctx, &exec); err != nil {
		return fmt.Errorf("start task child workflow: %w", err)
	}
	return nil
}

func (s *Starter) taskDefinition(agent *registry.AgentDefinition) *registry.WorkflowDefinition {
	for _, wf := range agent.Workflows {
		if wf.IsTask {
			return wf
		}
	}
	return nil
}
