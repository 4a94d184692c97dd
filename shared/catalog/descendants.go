package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// DefaultDescendantTTL is how long a resolved closure stays cached
const DefaultDescendantTTL = 5 * time.Minute

// BatchPolicy controls what a multi-id lookup writes to the cache
type BatchPolicy int

const (
	// BatchUnion queries the uncached ids of a batch together and caches the
	// combined closure under each of them. Cached entries are then only exact
	// when reused with the same batch shape.
	BatchUnion BatchPolicy = iota
	// BatchPerID caches each starting id's own closure
	BatchPerID
)

// ParseBatchPolicy maps a configuration value to a BatchPolicy, "per_id" or
// anything else for union
func ParseBatchPolicy(v string) BatchPolicy {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "per_id", "per-id", "perid":
		return BatchPerID
	default:
		return BatchUnion
	}
}

// DescendantCache memoizes descendant closures by starting id.
// Implementations must be safe for concurrent use; last write wins.
type DescendantCache interface {
	Get(ctx context.Context, id uint) ([]uint, bool)
	Set(ctx context.Context, id uint, ids []uint)
	Invalidate(ctx context.Context)
}

// CacheObserver receives hit/miss notifications, e.g. for metrics
type CacheObserver interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// DescendantResolver computes the set of a catalog and all its active descendants
type DescendantResolver struct {
	db       *gorm.DB
	cache    DescendantCache
	policy   BatchPolicy
	observer CacheObserver
	group    singleflight.Group
}

// ResolverOption configures a DescendantResolver
type ResolverOption func(*DescendantResolver)

// WithBatchPolicy selects the batch caching policy
func WithBatchPolicy(p BatchPolicy) ResolverOption {
	return func(r *DescendantResolver) { r.policy = p }
}

// WithCacheObserver reports cache hits and misses to o
func WithCacheObserver(o CacheObserver) ResolverOption {
	return func(r *DescendantResolver) { r.observer = o }
}

// NewDescendantResolver creates a resolver. A nil cache disables memoization.
func NewDescendantResolver(db *gorm.DB, cache DescendantCache, opts ...ResolverOption) *DescendantResolver {
	if cache == nil {
		cache = NoopCache{}
	}
	r := &DescendantResolver{db: db, cache: cache, policy: BatchUnion}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invalidate drops every cached closure
func (r *DescendantResolver) Invalidate(ctx context.Context) {
	r.cache.Invalidate(ctx)
}

// Resolve returns the starting ids plus all active transitive descendants.
// The result has no duplicates and no ordering guarantee.
func (r *DescendantResolver) Resolve(ctx context.Context, ids ...uint) ([]uint, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []uint{}, nil
	}

	if len(ids) == 1 {
		return r.resolveOne(ctx, ids[0])
	}
	if r.policy == BatchUnion {
		return r.resolveUnion(ctx, ids)
	}

	set := make(map[uint]struct{})
	for _, id := range ids {
		closure, err := r.resolveOne(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, d := range closure {
			set[d] = struct{}{}
		}
	}
	return setToSlice(set), nil
}

func (r *DescendantResolver) resolveOne(ctx context.Context, id uint) ([]uint, error) {
	if cached, ok := r.cache.Get(ctx, id); ok {
		r.hit()
		return cached, nil
	}
	r.miss()

	// the shared query must outlive a caller that goes away while others wait
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		closure, err := r.query(shared, []uint{id})
		if err != nil {
			return nil, err
		}
		r.cache.Set(shared, id, closure)
		return closure, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]uint(nil), v.([]uint)...), nil
}

// resolveUnion answers cached ids from the cache and queries the rest in one
// statement, caching that combined closure under every queried id
func (r *DescendantResolver) resolveUnion(ctx context.Context, ids []uint) ([]uint, error) {
	set := make(map[uint]struct{})
	var uncached []uint
	for _, id := range ids {
		cached, ok := r.cache.Get(ctx, id)
		if !ok {
			uncached = append(uncached, id)
			continue
		}
		for _, d := range cached {
			set[d] = struct{}{}
		}
	}
	if len(uncached) == 0 {
		r.hit()
		return setToSlice(set), nil
	}
	r.miss()

	closure, err := r.query(ctx, uncached)
	if err != nil {
		return nil, err
	}
	for _, id := range uncached {
		r.cache.Set(ctx, id, closure)
	}
	for _, d := range closure {
		set[d] = struct{}{}
	}
	return setToSlice(set), nil
}

const descendantsCTE = `
WITH RECURSIVE subtree(id) AS (
	SELECT id FROM catalogs WHERE id IN ?
	UNION
	SELECT c.id FROM catalogs c
	INNER JOIN subtree s ON c.parent_id = s.id
	WHERE c.active = ?
)
SELECT id FROM subtree`

func (r *DescendantResolver) query(ctx context.Context, ids []uint) ([]uint, error) {
	var found []uint
	if err := r.db.WithContext(ctx).Raw(descendantsCTE, ids, true).Scan(&found).Error; err != nil {
		return nil, fmt.Errorf("resolve descendants of %v: %w", ids, err)
	}

	// starting ids belong to their own closure even when absent from the table
	set := make(map[uint]struct{}, len(found)+len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, id := range found {
		set[id] = struct{}{}
	}
	return setToSlice(set), nil
}

func (r *DescendantResolver) hit() {
	if r.observer != nil {
		r.observer.RecordCacheHit()
	}
}

func (r *DescendantResolver) miss() {
	if r.observer != nil {
		r.observer.RecordCacheMiss()
	}
}

func dedupe(ids []uint) []uint {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func setToSlice(set map[uint]struct{}) []uint {
	out := make([]uint, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
