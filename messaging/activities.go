package messaging

import "context"

// ActivitySend is the pre-registered activity name used when sends are issued
// from workflow code.
const ActivitySend = "MessageActivity.Send"

// Activities hosts the messaging activity implementations registered on every
// worker.
type Activities struct {
	svc *Service
}

// NewActivities wraps the delivery service for worker registration.
func NewActivities(svc *Service) *Activities {
	return &Activities{svc: svc}
}

// Send delivers one message from activity context.
func (a *Activities) Send(ctx context.Context, msg Message) error {
	return a.svc.Send(ctx, msg)
}
