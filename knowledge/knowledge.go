// Package knowledge is the CRUD facade over agent knowledge: named content
// blobs scoped by tenant and agent, with a TTL cache and a pluggable provider
// so local mode runs without the backend.
package knowledge

import "context"

// Knowledge is one named content entry.
type Knowledge struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	Agent    string `json:"agent"`
	TenantID string `json:"tenantId,omitempty"`
}

// Provider is the storage backend. Server talks to the HTTP backend; Local
// serves from seeded YAML resources with an in-memory overlay.
type Provider interface {
	// Get returns the latest entry, or nil when none exists.
	Get(ctx context.Context, tenant, agent, name string) (*Knowledge, error)
	// Update upserts one entry.
	Update(ctx context.Context, k Knowledge) error
	// Delete removes an entry, reporting whether it existed.
	Delete(ctx context.Context, tenant, agent, name string) (bool, error)
	// List returns all entries for the agent.
	List(ctx context.Context, tenant, agent string) ([]Knowledge, error)
}
