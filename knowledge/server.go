package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
)

const (
	latestPath = "/api/agent/knowledge/latest"
	upsertPath = "/api/agent/knowledge"
	listPath   = "/api/agent/knowledge/list"
)

// Server is the backend-backed provider.
type Server struct {
	http *httpx.Client
}

// NewServer builds the provider over the shared backend client.
func NewServer(httpClient *httpx.Client) *Server {
	return &Server{http: httpClient}
}

func (s *Server) Get(ctx context.Context, tenant, agent, name string) (*Knowledge, error) {
	query := url.Values{"name": {name}, "agent": {agent}}
	var k Knowledge
	err := s.http.Get(ctx, latestPath, query, tenant, &k)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get knowledge %q: %w", name, err)
	}
	return &k, nil
}

func (s *Server) Update(ctx context.Context, k Knowledge) error {
	if err := s.http.Post(ctx, upsertPath, k, k.TenantID, nil); err != nil {
		return fmt.Errorf("update knowledge %q: %w", k.Name, err)
	}
	return nil
}

func (s *Server) Delete(ctx context.Context, tenant, agent, name string) (bool, error) {
	query := url.Values{"name": {name}, "agent": {agent}}
	err := s.http.Delete(ctx, upsertPath, query, tenant)
	if errors.Is(err, httpx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete knowledge %q: %w", name, err)
	}
	return true, nil
}

func (s *Server) List(ctx context.Context, tenant, agent string) ([]Knowledge, error) {
	query := url.Values{"agent": {agent}}
	var out []Knowledge
	err := s.http.Get(ctx, listPath, query, tenant, &out)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	return out, nil
}
