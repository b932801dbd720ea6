package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) *Local {
	t.Helper()
	local, err := NewLocal()
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	return local
}

func TestLocalSaveAndGet(t *testing.T) {
	local := newLocalStore(t)
	ctx := context.Background()

	saved, err := local.Save(ctx, Document{
		Type:     "order",
		Content:  map[string]any{"total": 42.5},
		Metadata: map[string]any{"source": "test"},
		TenantID: "acme",
		Agent:    "MyAgent",
	}, SaveOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := local.Get(ctx, "acme", "MyAgent", saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	content, ok := got.Content.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42.5, content["total"])
	assert.Equal(t, "test", got.Metadata["source"])

	// Tenant scoping: another tenant cannot see the document.
	foreign, err := local.Get(ctx, "contoso", "MyAgent", saved.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestLocalKeyAsIdentifierUpserts(t *testing.T) {
	local := newLocalStore(t)
	ctx := context.Background()

	first, err := local.Save(ctx, Document{
		Type: "profile", Key: "u1", Content: "v1", TenantID: "acme", Agent: "MyAgent",
	}, SaveOptions{UseKeyAsIdentifier: true})
	require.NoError(t, err)

	second, err := local.Save(ctx, Document{
		Type: "profile", Key: "u1", Content: "v2", TenantID: "acme", Agent: "MyAgent",
	}, SaveOptions{UseKeyAsIdentifier: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same (type, key) must keep one row")
	assert.Equal(t, "v2", second.Content)

	byKey, err := local.GetByKey(ctx, "acme", "MyAgent", "profile", "u1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, "v2", byKey.Content)
}

func TestLocalTTLExpiry(t *testing.T) {
	local := newLocalStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	local.now = func() time.Time { return now }
	ctx := context.Background()

	saved, err := local.Save(ctx, Document{
		Type: "session", Content: "live", TenantID: "acme", Agent: "MyAgent",
	}, SaveOptions{TTL: time.Hour})
	require.NoError(t, err)

	got, err := local.Get(ctx, "acme", "MyAgent", saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Hour)
	expired, err := local.Get(ctx, "acme", "MyAgent", saved.ID)
	require.NoError(t, err)
	assert.Nil(t, expired)

	exists, err := local.Exists(ctx, "acme", "MyAgent", saved.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalQueryFilters(t *testing.T) {
	local := newLocalStore(t)
	ctx := context.Background()

	for _, d := range []Document{
		{Type: "order", Key: "a", Content: 1, TenantID: "acme", Agent: "MyAgent"},
		{Type: "order", Key: "b", Content: 2, TenantID: "acme", Agent: "MyAgent"},
		{Type: "invoice", Key: "c", Content: 3, TenantID: "acme", Agent: "MyAgent"},
		{Type: "order", Key: "d", Content: 4, TenantID: "contoso", Agent: "MyAgent"},
	} {
		_, err := local.Save(ctx, d, SaveOptions{})
		require.NoError(t, err)
	}

	orders, err := local.Query(ctx, "acme", "MyAgent", Filter{Type: "order"})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	keyed, err := local.Query(ctx, "acme", "MyAgent", Filter{Keys: []string{"a", "c"}})
	require.NoError(t, err)
	assert.Len(t, keyed, 2)

	limited, err := local.Query(ctx, "acme", "MyAgent", Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLocalUpdateDeleteMany(t *testing.T) {
	local := newLocalStore(t)
	ctx := context.Background()

	a, err := local.Save(ctx, Document{Type: "n", Content: "a", TenantID: "acme", Agent: "MyAgent"}, SaveOptions{})
	require.NoError(t, err)
	b, err := local.Save(ctx, Document{Type: "n", Content: "b", TenantID: "acme", Agent: "MyAgent"}, SaveOptions{})
	require.NoError(t, err)

	a.Content = "a2"
	ok, err := local.Update(ctx, *a)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := local.Get(ctx, "acme", "MyAgent", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.Content)

	ok, err = local.Update(ctx, Document{ID: "missing", Type: "n", TenantID: "acme", Agent: "MyAgent"})
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := local.DeleteMany(ctx, "acme", "MyAgent", []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
