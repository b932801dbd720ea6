// Package secret is the CRUD facade over the secret vault. Secrets live at
// tenant, agent or user scope; fetch-by-key is a strict scope match, so an
// agent-scoped secret is invisible at tenant scope and vice versa. Values are
// opaque to the runtime.
package secret

import (
	"context"
	"errors"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

// ErrInvalidScope is returned when a scope is built without its required
// parts.
var ErrInvalidScope = errors.New("secret scope is incomplete")

// Scope addresses one secret namespace. Tenant is always set; Agent narrows
// to the agent; User narrows further to one user.
type Scope struct {
	Tenant string `json:"tenant"`
	Agent  string `json:"agent,omitempty"`
	User   string `json:"user,omitempty"`
}

// String returns the canonical scope key.
func (s Scope) String() string {
	out := s.Tenant
	if s.Agent != "" {
		out += "/" + s.Agent
	}
	if s.User != "" {
		out += "/" + s.User
	}
	return out
}

func (s Scope) valid() bool {
	if s.Tenant == "" {
		return false
	}
	if s.User != "" && s.Agent == "" {
		return false
	}
	return true
}

// Secret is one stored entry.
type Secret struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Scope Scope  `json:"scope"`
}

// Provider is the storage backend.
type Provider interface {
	// Get returns the secret at exactly the given scope, or nil.
	Get(ctx context.Context, scope Scope, key string) (*Secret, error)
	// Set upserts one secret.
	Set(ctx context.Context, secret Secret) error
	// Delete removes one secret, reporting whether it existed.
	Delete(ctx context.Context, scope Scope, key string) (bool, error)
}

// ScopeBuilder derives scopes from the current invocation.
type ScopeBuilder struct {
	rc *runctx.Context
}

// Scopes starts a scope derivation for the caller's tenant and agent.
func Scopes(rc *runctx.Context) *ScopeBuilder {
	return &ScopeBuilder{rc: rc}
}

// Tenant returns the tenant-wide scope.
func (b *ScopeBuilder) Tenant() (Scope, error) {
	tenant, err := b.rc.RequireTenant()
	if err != nil {
		return Scope{}, err
	}
	return Scope{Tenant: tenant}, nil
}

// Agent returns the scope of the caller's agent.
func (b *ScopeBuilder) Agent() (Scope, error) {
	scope, err := b.Tenant()
	if err != nil {
		return Scope{}, err
	}
	if b.rc.AgentName() == "" {
		return Scope{}, ErrInvalidScope
	}
	scope.Agent = b.rc.AgentName()
	return scope, nil
}

// User returns the scope of one user under the caller's agent.
func (b *ScopeBuilder) User(userID string) (Scope, error) {
	scope, err := b.Agent()
	if err != nil {
		return Scope{}, err
	}
	if userID == "" {
		return Scope{}, ErrInvalidScope
	}
	scope.User = userID
	return scope, nil
}
