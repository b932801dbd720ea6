package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// ErrImpersonationDenied is returned when SendAs names a workflow type that
// does not belong to the caller's agent.
var ErrImpersonationDenied = errors.New("send-as restricted to the caller's own agent")

// ChatOptions carries the optional fields of a proactive send.
type ChatOptions struct {
	Data  any
	Scope string
	Hint  string
}

// Messenger is the proactive send facade. Calls made from workflow code route
// through the messaging activity; calls from activities or plain callers post
// directly.
type Messenger struct {
	svc *Service
}

// NewMessenger builds the facade over the delivery service.
func NewMessenger(svc *Service) *Messenger {
	return &Messenger{svc: svc}
}

// SendChat sends a text message to a participant in the current tenant.
func (m *Messenger) SendChat(rc *runctx.Context, participantID, text string, opts *ChatOptions) error {
	msg, err := m.envelope(rc, participantID, text, opts)
	if err != nil {
		return err
	}
	return m.dispatch(rc, msg)
}

// SendData sends a structured data message to a participant.
func (m *Messenger) SendData(rc *runctx.Context, participantID string, data any, opts *ChatOptions) error {
	if opts == nil {
		opts = &ChatOptions{}
	}
	withData := *opts
	withData.Data = data
	msg, err := m.envelope(rc, participantID, "", &withData)
	if err != nil {
		return err
	}
	return m.dispatch(rc, msg)
}

// SendAs sends a text message attributed to another workflow type.
// Impersonation is restricted to workflow types registered on the caller's
// own agent.
func (m *Messenger) SendAs(rc *runctx.Context, workflowType, participantID, text string, opts *ChatOptions) error {
	wf, ok := rc.Registry().WorkflowByType(workflowType)
	if !ok || wf.Agent != rc.AgentName() {
		return fmt.Errorf("%w: %s", ErrImpersonationDenied, workflowType)
	}
	msg, err := m.envelope(rc, participantID, text, opts)
	if err != nil {
		return err
	}
	msg.WorkflowType = workflowType
	return m.dispatch(rc, msg)
}

func (m *Messenger) envelope(rc *runctx.Context, participantID, text string, opts *ChatOptions) (Message, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		TenantID:      tenant,
		ParticipantID: participantID,
		Text:          text,
		WorkflowType:  rc.WorkflowType(),
	}
	if opts != nil {
		msg.Data = opts.Data
		msg.Scope = opts.Scope
		msg.Hint = opts.Hint
	}
	return msg, nil
}

func (m *Messenger) dispatch(rc *runctx.Context, msg Message) error {
	return executor.Run(rc, ActivitySend, []any{msg}, func(ctx context.Context) error {
		return m.svc.Send(ctx, msg)
	})
}
