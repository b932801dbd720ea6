package knowledge

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// Service is the context-aware knowledge facade. Reads are cached with a TTL;
// mutations invalidate their entry.
type Service struct {
	provider Provider
	cache    *expirable.LRU[string, *Knowledge]
	logger   *zap.Logger
}

// NewService builds the facade over a provider. ttl <= 0 uses the default
// five minutes.
func NewService(provider Provider, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		cache:    expirable.NewLRU[string, *Knowledge](defaultCacheSize, nil, ttl),
		logger:   logger,
	}
}

func cacheKey(tenant, agent, name string) string { return tenant + "|" + agent + "|" + name }

// Get returns the named entry for the caller's tenant and agent, or nil.
func (s *Service) Get(rc *runctx.Context, name string) (*Knowledge, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityGet, []any{GetRequest{Tenant: tenant, Agent: agent, Name: name}},
		func(ctx context.Context) (*Knowledge, error) {
			return s.get(ctx, tenant, agent, name)
		})
}

// get is the direct read path shared with the knowledge activity.
func (s *Service) get(ctx context.Context, tenant, agent, name string) (*Knowledge, error) {
	key := cacheKey(tenant, agent, name)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}
	k, err := s.provider.Get(ctx, tenant, agent, name)
	if err != nil {
		return nil, err
	}
	if k != nil {
		s.cache.Add(key, k)
	}
	return k, nil
}

// Update upserts the named entry and drops its cached copy.
func (s *Service) Update(rc *runctx.Context, name, content, contentType string) error {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return err
	}
	k := Knowledge{
		Name:     name,
		Content:  content,
		Type:     contentType,
		Agent:    rc.AgentName(),
		TenantID: tenant,
	}
	return executor.Run(rc, ActivityUpdate, []any{k}, func(ctx context.Context) error {
		return s.update(ctx, k)
	})
}

func (s *Service) update(ctx context.Context, k Knowledge) error {
	if err := s.provider.Update(ctx, k); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(k.TenantID, k.Agent, k.Name))
	return nil
}

// Delete removes the named entry, reporting whether it existed.
func (s *Service) Delete(rc *runctx.Context, name string) (bool, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return false, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityDelete, []any{GetRequest{Tenant: tenant, Agent: agent, Name: name}},
		func(ctx context.Context) (bool, error) {
			return s.delete(ctx, tenant, agent, name)
		})
}

func (s *Service) delete(ctx context.Context, tenant, agent, name string) (bool, error) {
	existed, err := s.provider.Delete(ctx, tenant, agent, name)
	if err != nil {
		return false, err
	}
	s.cache.Remove(cacheKey(tenant, agent, name))
	return existed, nil
}

// List returns all entries for the caller's agent. Lists are not cached.
func (s *Service) List(rc *runctx.Context) ([]Knowledge, error) {
	tenant, err := rc.RequireTenant()
	if err != nil {
		return nil, err
	}
	agent := rc.AgentName()
	return executor.Execute(rc, ActivityList, []any{GetRequest{Tenant: tenant, Agent: agent}},
		func(ctx context.Context) ([]Knowledge, error) {
			return s.provider.List(ctx, tenant, agent)
		})
}
