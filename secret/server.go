package secret

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
)

const secretsPath = "/api/agent/secrets"

// Server is the backend-backed provider.
type Server struct {
	http *httpx.Client
}

// NewServer builds the provider over the shared backend client.
func NewServer(httpClient *httpx.Client) *Server {
	return &Server{http: httpClient}
}

func scopeQuery(scope Scope, key string) url.Values {
	query := url.Values{"key": {key}}
	if scope.Agent != "" {
		query.Set("agent", scope.Agent)
	}
	if scope.User != "" {
		query.Set("user", scope.User)
	}
	return query
}

func (s *Server) Get(ctx context.Context, scope Scope, key string) (*Secret, error) {
	if !scope.valid() {
		return nil, ErrInvalidScope
	}
	var out Secret
	err := s.http.Get(ctx, secretsPath, scopeQuery(scope, key), scope.Tenant, &out)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret %q: %w", key, err)
	}
	return &out, nil
}

func (s *Server) Set(ctx context.Context, secret Secret) error {
	if !secret.Scope.valid() {
		return ErrInvalidScope
	}
	if err := s.http.Post(ctx, secretsPath, secret, secret.Scope.Tenant, nil); err != nil {
		return fmt.Errorf("set secret %q: %w", secret.Key, err)
	}
	return nil
}

func (s *Server) Delete(ctx context.Context, scope Scope, key string) (bool, error) {
	if !scope.valid() {
		return false, ErrInvalidScope
	}
	err := s.http.Delete(ctx, secretsPath, scopeQuery(scope, key), scope.Tenant)
	if errors.Is(err, httpx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete secret %q: %w", key, err)
	}
	return true, nil
}
