package messaging

import (
	"context"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// UserMessageContext is handed to message handlers for each inbound user
// message. TenantID is derived from the hosting workflow id and is read-only
// from the handler's perspective.
type UserMessageContext struct {
	TenantID      string
	ParticipantID string
	RequestID     string
	Scope         string
	ThreadID      string
	Authorization string
	Text          string
	Data          any
	Metadata      map[string]any

	rc   *runctx.Context
	svc  *Service
	sink func(Message)
}

// Handler processes one inbound user message. Agents register one handler per
// workflow definition.
type Handler func(ctx *UserMessageContext) error

// NewUserMessageContext binds an inbound message to its invocation context.
func NewUserMessageContext(rc *runctx.Context, svc *Service, inbound Message) *UserMessageContext {
	return &UserMessageContext{
		TenantID:      inbound.TenantID,
		ParticipantID: inbound.ParticipantID,
		RequestID:     inbound.RequestID,
		Scope:         inbound.Scope,
		ThreadID:      inbound.ThreadID,
		Text:          inbound.Text,
		Data:          inbound.Data,
		Metadata:      inbound.Metadata,
		rc:            rc,
		svc:           svc,
	}
}

// NewCapturingUserMessageContext builds a context whose replies are handed to
// sink instead of being delivered. Used by agent-to-agent built-in chat to
// capture the first reply.
func NewCapturingUserMessageContext(rc *runctx.Context, inbound Message, sink func(Message)) *UserMessageContext {
	umc := NewUserMessageContext(rc, nil, inbound)
	umc.sink = sink
	return umc
}

// Context exposes the invocation context for capability calls made by the
// handler.
func (u *UserMessageContext) Context() *runctx.Context { return u.rc }

// Reply sends a text reply on the inbound message's thread. Replies from a
// single handler are delivered in call order.
func (u *UserMessageContext) Reply(text string) error {
	return u.reply(Message{Text: text})
}

// ReplyWithData sends a reply carrying both text and structured data.
func (u *UserMessageContext) ReplyWithData(text string, data any) error {
	return u.reply(Message{Text: text, Data: data})
}

func (u *UserMessageContext) reply(msg Message) error {
	msg.TenantID = u.TenantID
	msg.ParticipantID = u.ParticipantID
	msg.ThreadID = u.ThreadID
	msg.RequestID = u.RequestID
	msg.Scope = u.Scope
	if u.sink != nil {
		u.sink(msg)
		return nil
	}
	return executor.Run(u.rc, ActivitySend, []any{msg}, func(ctx context.Context) error {
		return u.svc.Send(ctx, msg)
	})
}
