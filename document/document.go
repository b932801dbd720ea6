// Package document is the CRUD facade over agent documents: typed, optionally
// keyed JSON records scoped by tenant and agent, with TTL expiry and a
// pluggable provider so local mode runs on in-memory SQLite.
package document

import (
	"context"
	"time"
)

// Document is one stored record.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type"`
	Key      string         `json:"key,omitempty"`
	Content  any            `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	TenantID string         `json:"tenantId,omitempty"`
	Agent    string         `json:"agent,omitempty"`

	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SaveOptions tunes one save.
type SaveOptions struct {
	// TTL expires the document after the given duration. Zero keeps it
	// indefinitely.
	TTL time.Duration `json:"ttl,omitempty"`
	// UseKeyAsIdentifier upserts on (type, key) instead of id.
	UseKeyAsIdentifier bool `json:"useKeyAsIdentifier,omitempty"`
}

// Filter selects documents for Query.
type Filter struct {
	Type  string   `json:"type,omitempty"`
	Keys  []string `json:"keys,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// Provider is the storage backend. Server talks to the HTTP backend; Local
// runs on in-memory SQLite.
type Provider interface {
	// Save inserts or upserts one document and returns the stored form.
	Save(ctx context.Context, doc Document, opts SaveOptions) (*Document, error)
	// Get returns a document by id, or nil when missing or expired.
	Get(ctx context.Context, tenant, agent, id string) (*Document, error)
	// GetByKey returns the document stored under (type, key), or nil.
	GetByKey(ctx context.Context, tenant, agent, docType, key string) (*Document, error)
	// Query returns documents matching the filter.
	Query(ctx context.Context, tenant, agent string, filter Filter) ([]Document, error)
	// Update replaces an existing document, reporting whether it existed.
	Update(ctx context.Context, doc Document) (bool, error)
	// Delete removes one document, reporting whether it existed.
	Delete(ctx context.Context, tenant, agent, id string) (bool, error)
	// DeleteMany removes documents by id, returning the count removed.
	DeleteMany(ctx context.Context, tenant, agent string, ids []string) (int, error)
	// Exists reports whether the id resolves to a live document.
	Exists(ctx context.Context, tenant, agent, id string) (bool, error)
}
