package secret

import (
	"context"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/executor"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// Activity names pre-registered on every worker.
const (
	ActivityGet    = "SecretActivity.Get"
	ActivitySet    = "SecretActivity.Set"
	ActivityDelete = "SecretActivity.Delete"
)

// ScopedRequest is the activity payload for reads and deletes.
type ScopedRequest struct {
	Scope Scope  `json:"scope"`
	Key   string `json:"key"`
}

// Service is the context-aware secret facade.
type Service struct {
	provider Provider
}

// NewService builds the facade over a provider.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Get fetches the secret at exactly the given scope, or nil.
func (s *Service) Get(rc *runctx.Context, scope Scope, key string) (*Secret, error) {
	return executor.Execute(rc, ActivityGet, []any{ScopedRequest{Scope: scope, Key: key}},
		func(ctx context.Context) (*Secret, error) {
			return s.provider.Get(ctx, scope, key)
		})
}

// Set upserts one secret.
func (s *Service) Set(rc *runctx.Context, secret Secret) error {
	return executor.Run(rc, ActivitySet, []any{secret}, func(ctx context.Context) error {
		return s.provider.Set(ctx, secret)
	})
}

// Delete removes one secret, reporting whether it existed.
func (s *Service) Delete(rc *runctx.Context, scope Scope, key string) (bool, error) {
	return executor.Execute(rc, ActivityDelete, []any{ScopedRequest{Scope: scope, Key: key}},
		func(ctx context.Context) (bool, error) {
			return s.provider.Delete(ctx, scope, key)
		})
}

// Activities hosts the secret activity implementations.
type Activities struct {
	svc *Service
}

// NewActivities wraps the service for worker registration.
func NewActivities(svc *Service) *Activities {
	return &Activities{svc: svc}
}

func (a *Activities) Get(ctx context.Context, req ScopedRequest) (*Secret, error) {
	return a.svc.provider.Get(ctx, req.Scope, req.Key)
}

func (a *Activities) Set(ctx context.Context, secret Secret) error {
	return a.svc.provider.Set(ctx, secret)
}

func (a *Activities) Delete(ctx context.Context, req ScopedRequest) (bool, error) {
	return a.svc.provider.Delete(ctx, req.Scope, req.Key)
}
