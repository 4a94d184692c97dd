package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/document"
)

type lookupCounter struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (c *lookupCounter) RecordCacheHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *lookupCounter) RecordCacheMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// fixture: X -> Y -> Z, X -> W, X -> V (inactive) -> U, and a separate root A -> B
type tree struct {
	X, Y, Z, W, V, U, A, B *document.Catalog
}

func buildTree(t *testing.T, db *gorm.DB) tree {
	t.Helper()
	var tr tree
	tr.X = mustCatalog(t, db, "X")
	tr.Y = mustCatalog(t, db, "Y", withParent(tr.X))
	tr.Z = mustCatalog(t, db, "Z", withParent(tr.Y))
	tr.W = mustCatalog(t, db, "W", withParent(tr.X))
	tr.V = mustCatalog(t, db, "V", withParent(tr.X), inactive())
	tr.U = mustCatalog(t, db, "U", withParent(tr.V))
	tr.A = mustCatalog(t, db, "A")
	tr.B = mustCatalog(t, db, "B", withParent(tr.A))
	return tr
}

func TestResolveIncludesActiveDescendants(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	resolver := catalog.NewDescendantResolver(db, nil)

	got, err := resolver.Resolve(context.Background(), tr.X.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(tr.X, tr.Y, tr.Z, tr.W), got)
}

func TestResolveLeafAndUnknownIDs(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	resolver := catalog.NewDescendantResolver(db, nil)
	ctx := context.Background()

	got, err := resolver.Resolve(ctx, tr.Z.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{tr.Z.ID}, got)

	got, err = resolver.Resolve(ctx, 9999)
	require.NoError(t, err)
	assert.Equal(t, []uint{9999}, got)

	got, err = resolver.Resolve(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolveInactiveStartKeepsItself(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	resolver := catalog.NewDescendantResolver(db, nil)

	got, err := resolver.Resolve(context.Background(), tr.V.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(tr.V, tr.U), got)
}

func TestResolveBatchEqualsUnionOfSingles(t *testing.T) {
	for name, policy := range map[string]catalog.BatchPolicy{
		"per id": catalog.BatchPerID,
		"union":  catalog.BatchUnion,
	} {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t)
			tr := buildTree(t, db)
			ctx := context.Background()

			uncached := catalog.NewDescendantResolver(db, nil)
			x, err := uncached.Resolve(ctx, tr.Y.ID)
			require.NoError(t, err)
			a, err := uncached.Resolve(ctx, tr.A.ID)
			require.NoError(t, err)

			cache := catalog.NewMemoryCache(time.Minute, 0)
			resolver := catalog.NewDescendantResolver(db, cache, catalog.WithBatchPolicy(policy))
			got, err := resolver.Resolve(ctx, tr.Y.ID, tr.A.ID, tr.Y.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, append(x, a...), got)
		})
	}
}

func TestResolveCachesClosures(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	ctx := context.Background()

	counter := &lookupCounter{}
	cache := catalog.NewMemoryCache(time.Minute, 0)
	resolver := catalog.NewDescendantResolver(db, cache, catalog.WithCacheObserver(counter))

	first, err := resolver.Resolve(ctx, tr.X.ID)
	require.NoError(t, err)

	// a new child is invisible until the cache is invalidated
	late := mustCatalog(t, db, "Late", withParent(tr.X))

	second, err := resolver.Resolve(ctx, tr.X.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, counter.hits)
	assert.Equal(t, 1, counter.misses)

	resolver.Invalidate(ctx)
	third, err := resolver.Resolve(ctx, tr.X.ID)
	require.NoError(t, err)
	assert.Contains(t, third, late.ID)
	assert.Equal(t, 2, counter.misses)
}

func TestResolveCachedResultIsNotAliased(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	ctx := context.Background()
	resolver := catalog.NewDescendantResolver(db, catalog.NewMemoryCache(time.Minute, 0))

	first, err := resolver.Resolve(ctx, tr.A.ID)
	require.NoError(t, err)
	first[0] = 0

	second, err := resolver.Resolve(ctx, tr.A.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(tr.A, tr.B), second)
}

func TestBatchPolicyCacheContents(t *testing.T) {
	t.Run("per id stores exact closures", func(t *testing.T) {
		db := newTestDB(t)
		tr := buildTree(t, db)
		ctx := context.Background()
		cache := catalog.NewMemoryCache(time.Minute, 0)
		resolver := catalog.NewDescendantResolver(db, cache, catalog.WithBatchPolicy(catalog.BatchPerID))

		_, err := resolver.Resolve(ctx, tr.Y.ID, tr.A.ID)
		require.NoError(t, err)

		cached, ok := cache.Get(ctx, tr.Y.ID)
		require.True(t, ok)
		assert.ElementsMatch(t, ids(tr.Y, tr.Z), cached)
	})

	t.Run("union stores the batch under each id", func(t *testing.T) {
		db := newTestDB(t)
		tr := buildTree(t, db)
		ctx := context.Background()
		cache := catalog.NewMemoryCache(time.Minute, 0)
		resolver := catalog.NewDescendantResolver(db, cache, catalog.WithBatchPolicy(catalog.BatchUnion))

		_, err := resolver.Resolve(ctx, tr.Y.ID, tr.A.ID)
		require.NoError(t, err)

		cached, ok := cache.Get(ctx, tr.Y.ID)
		require.True(t, ok)
		assert.ElementsMatch(t, ids(tr.Y, tr.Z, tr.A, tr.B), cached)
	})
}

func TestUnionBatchQueriesOnlyUncachedIDs(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	ctx := context.Background()
	counter := &lookupCounter{}
	cache := catalog.NewMemoryCache(time.Minute, 0)
	resolver := catalog.NewDescendantResolver(db, cache, catalog.WithCacheObserver(counter))

	_, err := resolver.Resolve(ctx, tr.Y.ID)
	require.NoError(t, err)

	got, err := resolver.Resolve(ctx, tr.Y.ID, tr.A.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(tr.Y, tr.Z, tr.A, tr.B), got)
	assert.Equal(t, 2, counter.misses)

	cachedY, ok := cache.Get(ctx, tr.Y.ID)
	require.True(t, ok)
	assert.ElementsMatch(t, ids(tr.Y, tr.Z), cachedY, "already cached ids keep their entry")
	cachedA, ok := cache.Get(ctx, tr.A.ID)
	require.True(t, ok)
	assert.ElementsMatch(t, ids(tr.A, tr.B), cachedA, "only the queried ids share the combined closure")

	again, err := resolver.Resolve(ctx, tr.A.ID, tr.Y.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, got, again)
	assert.Equal(t, 1, counter.hits)
	assert.Equal(t, 2, counter.misses)
}

func TestParseBatchPolicy(t *testing.T) {
	assert.Equal(t, catalog.BatchUnion, catalog.ParseBatchPolicy(" Union "))
	assert.Equal(t, catalog.BatchUnion, catalog.ParseBatchPolicy(""))
	assert.Equal(t, catalog.BatchPerID, catalog.ParseBatchPolicy("per_id"))
	assert.Equal(t, catalog.BatchPerID, catalog.ParseBatchPolicy(" PER_ID "))
}

func TestResolveSurvivesCancelledCaller(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	resolver := catalog.NewDescendantResolver(db, catalog.NewMemoryCache(time.Minute, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := resolver.Resolve(ctx, tr.A.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(tr.A, tr.B), got)
}

func TestResolveConcurrentCallers(t *testing.T) {
	db := newTestDB(t)
	tr := buildTree(t, db)
	ctx := context.Background()
	resolver := catalog.NewDescendantResolver(db, catalog.NewMemoryCache(time.Minute, 0))

	var wg sync.WaitGroup
	results := make([][]uint, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = resolver.Resolve(ctx, tr.X.ID)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.ElementsMatch(t, ids(tr.X, tr.Y, tr.Z, tr.W), results[i])
	}
}
