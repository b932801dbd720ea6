package document

import "context"

// Activity names pre-registered on every worker.
const (
	ActivitySave       = "DocumentActivity.Save"
	ActivityGet        = "DocumentActivity.Get"
	ActivityGetByKey   = "DocumentActivity.GetByKey"
	ActivityQuery      = "DocumentActivity.Query"
	ActivityUpdate     = "DocumentActivity.Update"
	ActivityDelete     = "DocumentActivity.Delete"
	ActivityDeleteMany = "DocumentActivity.DeleteMany"
	ActivityExists     = "DocumentActivity.Exists"
)

// SaveActivityRequest is the Save activity payload.
type SaveActivityRequest struct {
	Document Document    `json:"document"`
	Options  SaveOptions `json:"options"`
}

// IDRequest addresses one document by id.
type IDRequest struct {
	Tenant string `json:"tenant"`
	Agent  string `json:"agent"`
	ID     string `json:"id"`
}

// IDsRequest addresses several documents by id.
type IDsRequest struct {
	Tenant string   `json:"tenant"`
	Agent  string   `json:"agent"`
	IDs    []string `json:"ids"`
}

// KeyRequest addresses one document by (type, key).
type KeyRequest struct {
	Tenant string `json:"tenant"`
	Agent  string `json:"agent"`
	Type   string `json:"type"`
	Key    string `json:"key"`
}

// QueryActivityRequest is the Query activity payload.
type QueryActivityRequest struct {
	Tenant string `json:"tenant"`
	Agent  string `json:"agent"`
	Filter Filter `json:"filter"`
}

// Activities hosts the document activity implementations.
type Activities struct {
	svc *Service
}

// NewActivities wraps the service for worker registration.
func NewActivities(svc *Service) *Activities {
	return &Activities{svc: svc}
}

func (a *Activities) Save(ctx context.Context, req SaveActivityRequest) (*Document, error) {
	return a.svc.provider.Save(ctx, req.Document, req.Options)
}

func (a *Activities) Get(ctx context.Context, req IDRequest) (*Document, error) {
	return a.svc.provider.Get(ctx, req.Tenant, req.Agent, req.ID)
}

func (a *Activities) GetByKey(ctx context.Context, req KeyRequest) (*Document, error) {
	return a.svc.provider.GetByKey(ctx, req.Tenant, req.Agent, req.Type, req.Key)
}

func (a *Activities) Query(ctx context.Context, req QueryActivityRequest) ([]Document, error) {
	return a.svc.provider.Query(ctx, req.Tenant, req.Agent, req.Filter)
}

func (a *Activities) Update(ctx context.Context, doc Document) (bool, error) {
	return a.svc.provider.Update(ctx, doc)
}

func (a *Activities) Delete(ctx context.Context, req IDRequest) (bool, error) {
	return a.svc.provider.Delete(ctx, req.Tenant, req.Agent, req.ID)
}

func (a *Activities) DeleteMany(ctx context.Context, req IDsRequest) (int, error) {
	return a.svc.provider.DeleteMany(ctx, req.Tenant, req.Agent, req.IDs)
}

func (a *Activities) Exists(ctx context.Context, req IDRequest) (bool, error) {
	return a.svc.provider.Exists(ctx, req.Tenant, req.Agent, req.ID)
}
