package agent

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// SignalUserMessage carries inbound user messages into conversational
// workflows.
const SignalUserMessage = "user-message"

// messagesPerRun bounds history growth before the workflow continues as new.
const messagesPerRun = 500

// Runner generates the workflow function backing each conversational
// workflow definition.
type Runner struct {
	reg *registry.Registry
	svc *messaging.Service
}

// NewRunner binds the runner to the registry and delivery service.
func NewRunner(reg *registry.Registry, svc *messaging.Service) *Runner {
	return &Runner{reg: reg, svc: svc}
}

// WorkflowFunc returns the long-running workflow for one definition: it
// receives user messages and feeds them to the registered handler, guarding
// tenant isolation and continuing as new when history grows.
func (r *Runner) WorkflowFunc(def *registry.WorkflowDefinition) func(ctx workflow.Context) error {
	return func(ctx workflow.Context) error {
		logger := workflow.GetLogger(ctx)

		rc, err := runctx.FromWorkflow(ctx, r.reg)
		if err != nil {
			return err
		}

		ch := workflow.GetSignalChannel(ctx, SignalUserMessage)
		for processed := 0; processed < messagesPerRun; processed++ {
			var msg messaging.Message
			ch.Receive(ctx, &msg)
			if msg.TenantID == "" {
				msg.TenantID = rc.TenantID()
			}

			if violation := r.isolationViolation(rc, def); violation != "" {
				umc := messaging.NewUserMessageContext(rc, r.svc, msg)
				if replyErr := umc.Reply(violation); replyErr != nil {
					logger.Error("Isolation error reply failed", "error", replyErr)
				}
				logger.Error("Tenant isolation violation",
					"workflow_id", rc.WorkflowID(),
					"id_tenant", rc.TenantID(),
				)
				return nil
			}

			r.handle(rc, def, msg, logger)
		}

		// Drain anything signaled while we were at the cap, then roll over.
		for {
			var msg messaging.Message
			if !ch.ReceiveAsync(&msg) {
				break
			}
			r.handle(rc, def, msg, logger)
		}
		return workflow.NewContinueAsNewError(ctx, def.WorkflowType)
	}
}

// isolationViolation returns the error reply text when a non-system-scoped
// agent hosts an execution for a foreign tenant.
func (r *Runner) isolationViolation(rc *runctx.Context, def *registry.WorkflowDefinition) string {
	agentDef, ok := r.reg.Agent(def.Agent)
	if !ok || agentDef.SystemScoped || agentDef.Tenant == "" {
		return ""
	}
	if rc.TenantID() == agentDef.Tenant {
		return ""
	}
	return fmt.Sprintf("Tenant isolation: this agent serves tenant %s and cannot process executions for %s",
		agentDef.Tenant, rc.TenantID())
}

// handle runs one message through the registered handler. Failures produce a
// single best-effort error reply and never fail the workflow.
func (r *Runner) handle(rc *runctx.Context, def *registry.WorkflowDefinition, msg messaging.Message, logger log.Logger) {
	handler, ok := def.Handler.(messaging.Handler)
	if !ok || handler == nil {
		logger.Error("No message handler registered", "workflow_type", def.WorkflowType)
		return
	}
	umc := messaging.NewUserMessageContext(rc, r.svc, msg)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Message handler panicked",
				"workflow_type", def.WorkflowType,
				"panic", fmt.Sprintf("%v", rec),
			)
			if replyErr := umc.Reply("An internal error occurred while processing your message."); replyErr != nil {
				logger.Error("Error reply failed", "error", replyErr)
			}
		}
	}()

	if err := handler(umc); err != nil {
		logger.Error("Message handler failed",
			"workflow_type", def.WorkflowType,
			"error", err,
		)
		if replyErr := umc.Reply(fmt.Sprintf("Error processing message: %v", err)); replyErr != nil {
			logger.Error("Error reply failed", "error", replyErr)
		}
	}
}
