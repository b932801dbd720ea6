package document

import (
	"context"

	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// Service is the context-aware document facade.
type Service struct {
	provider Provider
	logger   *zap.Logger
}

// NewService builds the facade over a provider.
func NewService(provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, logger: logger}
}

// scope stamps tenant and agent from the invocation onto the document.
func (s *Service) scope(rc *runctx.Context, doc *Document) error {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return err
	}
	doc.TenantID = tenant
	if doc.Agent == "" {
		doc.Agent = rc.AgentName()
	}
	return nil
}

// Save stores one document under the caller's tenant and agent.
func (s *Service) Save(rc *runctx.Context, doc Document, opts SaveOptions) (*Document, error) {
	if err := s.scope(rc, &doc); err != nil {
		return nil, err
	}
	return executor.Execute(rc, ActivitySave, []any{SaveActivityRequest{Document: doc, Options: opts}},
		func(ctx context.Context) (*Document, error) {
			return s.provider.Save(ctx, doc, opts)
		})
}

// Get fetches a document by id, or nil.
func (s *Service) Get(rc *runctx.Context, id string) (*Document, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityGet, []any{IDRequest{Tenant: tenant, Agent: agent, ID: id}},
		func(ctx context.Context) (*Document, error) {
			return s.provider.Get(ctx, tenant, agent, id)
		})
}

// GetByKey fetches the document stored under (type, key), or nil.
func (s *Service) GetByKey(rc *runctx.Context, docType, key string) (*Document, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityGetByKey, []any{KeyRequest{Tenant: tenant, Agent: agent, Type: docType, Key: key}},
		func(ctx context.Context) (*Document, error) {
			return s.provider.GetByKey(ctx, tenant, agent, docType, key)
		})
}

// Query returns documents matching the filter.
func (s *Service) Query(rc *runctx.Context, filter Filter) ([]Document, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityQuery, []any{QueryActivityRequest{Tenant: tenant, Agent: agent, Filter: filter}},
		func(ctx context.Context) ([]Document, error) {
			return s.provider.Query(ctx, tenant, agent, filter)
		})
}

// Update replaces an existing document, reporting whether it existed.
func (s *Service) Update(rc *runctx.Context, doc Document) (bool, error) {
	if err := s.scope(rc, &doc); err != nil {
		return false, err
	}
	return executor.Execute(rc, ActivityUpdate, []any{doc},
		func(ctx context.Context) (bool, error) {
			return s.provider.Update(ctx, doc)
		})
}

// Delete removes one document, reporting whether it existed.
func (s *Service) Delete(rc *runctx.Context, id string) (bool, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return false, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityDelete, []any{IDRequest{Tenant: tenant, Agent: agent, ID: id}},
		func(ctx context.Context) (bool, error) {
			return s.provider.Delete(ctx, tenant, agent, id)
		})
}

// DeleteMany removes documents by id, returning the count removed.
func (s *Service) DeleteMany(rc *runctx.Context, ids []string) (int, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return 0, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityDeleteMany, []any{IDsRequest{Tenant: tenant, Agent: agent, IDs: ids}},
		func(ctx context.Context) (int, error) {
			return s.provider.DeleteMany(ctx, tenant, agent, ids)
		})
}

// Exists reports whether the id resolves to a live document.
func (s *Service) Exists(rc *runctx.Context, id string) (bool, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return false, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityExists, []any{IDRequest{Tenant: tenant, Agent: agent, ID: id}},
		func(ctx context.Context) (bool, error) {
			return s.provider.Exists(ctx, tenant, agent, id)
		})
}
