package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/httpx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/runctx"
)

type countingProvider struct {
	Provider
	store map[string]*Knowledge
	gets  atomic.Int64
}

func newCountingProvider() *countingProvider {
	return &countingProvider{store: map[string]*Knowledge{}}
}

func (p *countingProvider) Get(ctx context.Context, tenant, agent, name string) (*Knowledge, error) {
	p.gets.Add(1)
	return p.store[tenant+"|"+agent+"|"+name], nil
}

func (p *countingProvider) Update(ctx context.Context, k Knowledge) error {
	stored := k
	p.store[k.TenantID+"|"+k.Agent+"|"+k.Name] = &stored
	return nil
}

func (p *countingProvider) Delete(ctx context.Context, tenant, agent, name string) (bool, error) {
	key := tenant + "|" + agent + "|" + name
	_, ok := p.store[key]
	delete(p.store, key)
	return ok, nil
}

func (p *countingProvider) List(ctx context.Context, tenant, agent string) ([]Knowledge, error) {
	var out []Knowledge
	for _, k := range p.store {
		if k.TenantID == tenant && k.Agent == agent {
			out = append(out, *k)
		}
	}
	return out, nil
}

func agentContext(tenant string) *runctx.Context {
	return runctx.ForActivity(context.Background(), runctx.Info{
		TenantID:  tenant,
		AgentName: "MyAgent",
	}, registry.New())
}

func TestGetCachesUntilInvalidated(t *testing.T) {
	provider := newCountingProvider()
	require.NoError(t, provider.Update(context.Background(), Knowledge{
		Name: "prompt", Content: "v1", Agent: "MyAgent", TenantID: "acme",
	}))
	svc := NewService(provider, time.Minute, zaptest.NewLogger(t))
	rc := agentContext("acme")

	for range 3 {
		k, err := svc.Get(rc, "prompt")
		require.NoError(t, err)
		require.NotNil(t, k)
		assert.Equal(t, "v1", k.Content)
	}
	assert.Equal(t, int64(1), provider.gets.Load(), "repeat reads must hit the cache")

	require.NoError(t, svc.Update(rc, "prompt", "v2", ""))
	k, err := svc.Get(rc, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "v2", k.Content)
	assert.Equal(t, int64(2), provider.gets.Load(), "update must invalidate the cache")
}

func TestDeleteInvalidatesCache(t *testing.T) {
	provider := newCountingProvider()
	require.NoError(t, provider.Update(context.Background(), Knowledge{
		Name: "prompt", Content: "v1", Agent: "MyAgent", TenantID: "acme",
	}))
	svc := NewService(provider, time.Minute, zaptest.NewLogger(t))
	rc := agentContext("acme")

	_, err := svc.Get(rc, "prompt")
	require.NoError(t, err)

	existed, err := svc.Delete(rc, "prompt")
	require.NoError(t, err)
	assert.True(t, existed)

	k, err := svc.Get(rc, "prompt")
	require.NoError(t, err)
	assert.Nil(t, k)
}

func TestServerProviderRoundTrip(t *testing.T) {
	var lastTenant string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/agent/knowledge/latest", func(w http.ResponseWriter, r *http.Request) {
		lastTenant = r.Header.Get(httpx.TenantHeader)
		if r.URL.Query().Get("name") != "prompt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Knowledge{Name: "prompt", Content: "hello", Agent: "MyAgent"})
	})
	mux.HandleFunc("GET /api/agent/knowledge/list", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Knowledge{{Name: "prompt"}, {Name: "style"}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := httpx.New(httpx.Config{BaseURL: server.URL, APIKey: "k"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	provider := NewServer(client)

	k, err := provider.Get(context.Background(), "acme", "MyAgent", "prompt")
	require.NoError(t, err)
	require.NotNil(t, k)
	assert.Equal(t, "hello", k.Content)
	assert.Equal(t, "acme", lastTenant)

	missing, err := provider.Get(context.Background(), "acme", "MyAgent", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := provider.List(context.Background(), "acme", "MyAgent")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLocalProviderSeedAndOverlay(t *testing.T) {
	dir := t.TempDir()
	seed := `agent: MyAgent
knowledge:
  - name: greeting
    content: hello there
    type: text
  - name: style
    content: concise
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seed), 0o644))

	local, err := NewLocal(dir)
	require.NoError(t, err)

	ctx := context.Background()
	k, err := local.Get(ctx, "acme", "MyAgent", "greeting")
	require.NoError(t, err)
	require.NotNil(t, k)
	assert.Equal(t, "hello there", k.Content)
	assert.Equal(t, "acme", k.TenantID)

	// Overlay shadows the seed for this tenant only.
	require.NoError(t, local.Update(ctx, Knowledge{
		Name: "greeting", Content: "hi", Agent: "MyAgent", TenantID: "acme",
	}))
	k, err = local.Get(ctx, "acme", "MyAgent", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", k.Content)

	other, err := local.Get(ctx, "contoso", "MyAgent", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello there", other.Content)

	existed, err := local.Delete(ctx, "acme", "MyAgent", "style")
	require.NoError(t, err)
	assert.True(t, existed)
	gone, err := local.Get(ctx, "acme", "MyAgent", "style")
	require.NoError(t, err)
	assert.Nil(t, gone)

	list, err := local.List(ctx, "acme", "MyAgent")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "greeting", list[0].Name)
	assert.Equal(t, "hi", list[0].Content)
}
