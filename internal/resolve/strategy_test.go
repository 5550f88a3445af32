package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relation-preload/internal/preload"
	"relation-preload/internal/schema"
	"relation-preload/internal/source"
)

func record(pk string, values map[string]any) source.Record {
	return source.NewRecord(pk, values)
}

func authors() *source.MemorySource {
	return source.NewMemorySource("authors", "id", source.IdentifierInt,
		record("id", map[string]any{"id": int64(3), "name": "Tolkien"}),
		record("id", map[string]any{"id": int64(5), "name": "Herbert"}),
	)
}

func withLookupEnabled(t *testing.T) {
	t.Helper()
	EnablePreloadLookup()
	t.Cleanup(DisablePreloadLookup)
}

// preloadBooks runs a full preload pass for payload and returns the
// serializer with its bound cache.
func preloadBooks(t *testing.T, src source.Source, payload any) (*schema.Serializer, *preload.Manager) {
	t.Helper()
	s := schema.New("book", schema.Relation("author", src))
	m, err := preload.Run(context.Background(), preload.Config{Enabled: true}, s, payload)
	require.NoError(t, err)
	require.NotNil(t, m)
	return s, m
}

func TestEnableDisableIdempotent(t *testing.T) {
	t.Cleanup(DisablePreloadLookup)

	// Disable before any enable is a no-op.
	DisablePreloadLookup()

	EnablePreloadLookup()
	first := currentStrategy()
	EnablePreloadLookup()
	// A second enable must not replace the installed strategy.
	assert.Same(t, first, currentStrategy())

	DisablePreloadLookup()
	DisablePreloadLookup()
	_, ok := currentStrategy().(directStrategy)
	assert.True(t, ok)
}

func TestCacheHitIssuesNoFetch(t *testing.T) {
	withLookupEnabled(t)
	src := authors()
	s, m := preloadBooks(t, src, map[string]any{"author": 3})
	require.Equal(t, 1, src.SelectInCalls())

	obj, err := Resolve(context.Background(), s.Field("author"), 3)
	require.NoError(t, err)

	// The very object placed in the cache comes back, with no extra query
	// of either kind.
	cached, ok := m.Find(preload.Fingerprint(src), int64(3))
	require.True(t, ok)
	assert.Equal(t, cached, obj)
	assert.Equal(t, 0, src.GetCalls())
	assert.Equal(t, 1, src.SelectInCalls())
}

func TestCacheMissFallsBackAndAppends(t *testing.T) {
	withLookupEnabled(t)
	src := authors()
	// Preload only author 3; author 5 will miss.
	s, m := preloadBooks(t, src, map[string]any{"author": 3})

	obj, err := Resolve(context.Background(), s.Field("author"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.PrimaryKey())
	assert.Equal(t, 1, src.GetCalls())

	// The fallback result joined the cache: a second reference to the same
	// identifier never fetches again.
	_, ok := m.Find(preload.Fingerprint(src), int64(5))
	assert.True(t, ok)

	again, err := Resolve(context.Background(), s.Field("author"), 5)
	require.NoError(t, err)
	assert.Equal(t, obj, again)
	assert.Equal(t, 1, src.GetCalls())
}

func TestNoCacheInChainResolvesDirectly(t *testing.T) {
	withLookupEnabled(t)
	src := authors()
	s := schema.New("book", schema.Relation("author", src))

	obj, err := Resolve(context.Background(), s.Field("author"), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), obj.PrimaryKey())
	assert.Equal(t, 1, src.GetCalls())
	assert.Equal(t, 0, src.SelectInCalls())
}

func TestNestedFieldUsesAncestorCache(t *testing.T) {
	withLookupEnabled(t)
	src := authors()
	item := schema.New("item", schema.Relation("author", src))
	root := schema.New("order", schema.NestedList("items", item))

	payload := map[string]any{"items": []any{map[string]any{"author": 3}}}
	m, err := preload.Run(context.Background(), preload.Config{Enabled: true}, root, payload)
	require.NoError(t, err)
	require.NotNil(t, m)

	// The child serializer owns no cache; resolution walks up to the root's.
	obj, err := Resolve(context.Background(), item.Field("author"), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), obj.PrimaryKey())
	assert.Equal(t, 0, src.GetCalls())
}

func TestFallbackNotFoundIsFieldLevel(t *testing.T) {
	withLookupEnabled(t)
	src := authors()
	s, _ := preloadBooks(t, src, map[string]any{"author": 3})

	_, err := Resolve(context.Background(), s.Field("author"), 404)
	require.ErrorIs(t, err, ErrRelatedNotFound)
}

func TestDirectStrategyRejectsBadIdentifier(t *testing.T) {
	src := authors()
	s := schema.New("book", schema.Relation("author", src))

	_, err := Resolve(context.Background(), s.Field("author"), "abc")
	require.ErrorIs(t, err, ErrRelatedNotFound)
	assert.Equal(t, 0, src.GetCalls())
}
