package knowledge

import "context"

// Activity names pre-registered on every worker.
const (
	ActivityGet    = "KnowledgeActivity.Get"
	ActivityUpdate = "KnowledgeActivity.Update"
	ActivityDelete = "KnowledgeActivity.Delete"
	ActivityList   = "KnowledgeActivity.List"
)

// GetRequest is the activity payload for read and delete operations.
type GetRequest struct {
	Tenant string `json:"tenant"`
	Agent  string `json:"agent"`
	Name   string `json:"name,omitempty"`
}

// Activities hosts the knowledge activity implementations.
type Activities struct {
	svc *Service
}

// NewActivities wraps the service for worker registration.
func NewActivities(svc *Service) *Activities {
	return &Activities{svc: svc}
}

// Get serves knowledge reads from activity context.
func (a *Activities) Get(ctx context.Context, req GetRequest) (*Knowledge, error) {
	return a.svc.get(ctx, req.Tenant, req.Agent, req.Name)
}

// Update serves knowledge upserts from activity context.
func (a *Activities) Update(ctx context.Context, k Knowledge) error {
	return a.svc.update(ctx, k)
}

// Delete serves knowledge deletes from activity context.
func (a *Activities) Delete(ctx context.Context, req GetRequest) (bool, error) {
	return a.svc.delete(ctx, req.Tenant, req.Agent, req.Name)
}

// List serves knowledge listing from activity context.
func (a *Activities) List(ctx context.Context, req GetRequest) ([]Knowledge, error) {
	return a.svc.provider.List(ctx, req.Tenant, req.Agent)
}
