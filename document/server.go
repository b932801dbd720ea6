package document

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
)

const documentsPath = "/api/agent/documents"

// Server is the backend-backed provider.
type Server struct {
	http *httpx.Client
}

// NewServer builds the provider over the shared backend client.
func NewServer(httpClient *httpx.Client) *Server {
	return &Server{http: httpClient}
}

// saveRequest wraps a save with its options for the backend.
type saveRequest struct {
	Document Document    `json:"document"`
	Options  SaveOptions `json:"options"`
}

type deleteManyResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) Save(ctx context.Context, doc Document, opts SaveOptions) (*Document, error) {
	var out Document
	if err := s.http.Post(ctx, documentsPath, saveRequest{Document: doc, Options: opts}, doc.TenantID, &out); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return &out, nil
}

func (s *Server) Get(ctx context.Context, tenant, agent, id string) (*Document, error) {
	query := url.Values{"id": {id}, "agent": {agent}}
	var doc Document
	err := s.http.Get(ctx, documentsPath, query, tenant, &doc)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %q: %w", id, err)
	}
	return &doc, nil
}

func (s *Server) GetByKey(ctx context.Context, tenant, agent, docType, key string) (*Document, error) {
	query := url.Values{"type": {docType}, "key": {key}, "agent": {agent}}
	var doc Document
	err := s.http.Get(ctx, documentsPath, query, tenant, &doc)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by key %s/%s: %w", docType, key, err)
	}
	return &doc, nil
}

func (s *Server) Query(ctx context.Context, tenant, agent string, filter Filter) ([]Document, error) {
	query := url.Values{"agent": {agent}}
	if filter.Type != "" {
		query.Set("type", filter.Type)
	}
	if len(filter.Keys) > 0 {
		query.Set("keys", strings.Join(filter.Keys, ","))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	var out []Document
	err := s.http.Get(ctx, documentsPath+"/query", query, tenant, &out)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return out, nil
}

func (s *Server) Update(ctx context.Context, doc Document) (bool, error) {
	err := s.http.Put(ctx, documentsPath, doc, doc.TenantID, nil)
	if errors.Is(err, httpx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update document %q: %w", doc.ID, err)
	}
	return true, nil
}

func (s *Server) Delete(ctx context.Context, tenant, agent, id string) (bool, error) {
	query := url.Values{"id": {id}, "agent": {agent}}
	err := s.http.Delete(ctx, documentsPath, query, tenant)
	if errors.Is(err, httpx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete document %q: %w", id, err)
	}
	return true, nil
}

func (s *Server) DeleteMany(ctx context.Context, tenant, agent string, ids []string) (int, error) {
	query := url.Values{"ids": {strings.Join(ids, ",")}, "agent": {agent}}
	var out deleteManyResponse
	err := s.http.Do(ctx, httpx.Request{
		Method: "DELETE",
		Path:   documentsPath,
		Query:  query,
		Tenant: tenant,
		Out:    &out,
	})
	if errors.Is(err, httpx.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return out.Deleted, nil
}

func (s *Server) Exists(ctx context.Context, tenant, agent, id string) (bool, error) {
	doc, err := s.Get(ctx, tenant, agent, id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}
