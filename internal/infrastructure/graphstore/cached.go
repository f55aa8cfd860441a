package graphstore

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

const (
	substanceCachePrefix = "substance:"
	countsCacheKey       = "graph:counts"
)

// CachedStore is a read-through cache in front of a graph.Store.  Substance
// reads are served from redis with a TTL; Apply delegates to the underlying
// store and invalidates the keys it touched.  Any cache failure degrades to
// a direct store read, so the cache can disappear without breaking reads.
type CachedStore struct {
	next      graph.Store
	cache     redis.Cache
	ttl       time.Duration
	countsTTL time.Duration
	logger    logging.Logger
}

// NewCachedStore wraps next with a redis-backed read cache.  ttl 0 falls
// back to 5 minutes for substances; counts always use a short TTL since
// they change with every applied bundle.
func NewCachedStore(next graph.Store, cache redis.Cache, ttl time.Duration, log logging.Logger) *CachedStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		next:      next,
		cache:     cache,
		ttl:       ttl,
		countsTTL: 30 * time.Second,
		logger:    log.Named("cached-store"),
	}
}

// Apply delegates to the underlying store, then drops cache entries for
// every substance the bundle touched plus the counts key.  Invalidation
// failures are logged but never fail the write; stale entries expire on
// their own TTL.
func (s *CachedStore) Apply(ctx context.Context, bundle *graph.Bundle) (graph.ApplyStats, error) {
	stats, err := s.next.Apply(ctx, bundle)
	if err != nil {
		return stats, err
	}

	keys := []string{countsCacheKey}
	if bundle != nil {
		for _, v := range bundle.Vertices(graph.CollectionSubstances) {
			keys = append(keys, substanceCachePrefix+v.Key())
		}
	}
	if delErr := s.cache.Delete(ctx, keys...); delErr != nil {
		s.logger.Warn("cache invalidation failed after apply",
			logging.Int("keys", len(keys)), logging.Err(delErr))
	}
	return stats, nil
}

// GetSubstance serves the substance from cache when present, loading and
// caching it on a miss.  Lookups that find nothing are negative-cached
// briefly by the cache layer.
func (s *CachedStore) GetSubstance(ctx context.Context, key string) (*graph.Substance, error) {
	var sub graph.Substance
	err := s.cache.GetOrSet(ctx, substanceCachePrefix+key, &sub, s.ttl,
		func(ctx context.Context) (interface{}, error) {
			got, loadErr := s.next.GetSubstance(ctx, key)
			if loadErr != nil {
				if errors.IsNotFound(loadErr) {
					return nil, nil
				}
				return nil, loadErr
			}
			return got, nil
		})

	switch {
	case err == nil:
		return &sub, nil
	case stderrors.Is(err, redis.ErrCacheMiss):
		// Negative-cached: the store had nothing under this key.
		return nil, errors.New(errors.ErrCodeSubstanceNotFound, "substance not found: "+key)
	case errors.GetCode(err) == errors.ErrCodeCacheError || errors.GetCode(err) == errors.ErrCodeSerialization:
		s.logger.Warn("substance cache unavailable, reading through", logging.Err(err))
		return s.next.GetSubstance(ctx, key)
	default:
		return nil, err
	}
}

// FindEnrichedByNames always reads through.  It sits on the enrichment
// write path, where a stale answer would skip work that still needs doing.
func (s *CachedStore) FindEnrichedByNames(ctx context.Context, names []string) (map[string]*graph.Substance, error) {
	return s.next.FindEnrichedByNames(ctx, names)
}

// SearchSubstances reads through uncached; query shapes are unbounded and
// result lists go stale on every enrichment.
func (s *CachedStore) SearchSubstances(ctx context.Context, query string, limit int) ([]*graph.Substance, error) {
	return s.next.SearchSubstances(ctx, query, limit)
}

// CollectionCounts caches counts briefly; the dashboard polls this and the
// underlying query touches every collection.
func (s *CachedStore) CollectionCounts(ctx context.Context) (map[string]int, error) {
	var counts map[string]int
	err := s.cache.GetOrSet(ctx, countsCacheKey, &counts, s.countsTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.next.CollectionCounts(ctx)
		})
	if err != nil {
		if stderrors.Is(err, redis.ErrCacheMiss) ||
			errors.GetCode(err) == errors.ErrCodeCacheError ||
			errors.GetCode(err) == errors.ErrCodeSerialization {
			return s.next.CollectionCounts(ctx)
		}
		return nil, err
	}
	return counts, nil
}

var _ graph.Store = (*CachedStore)(nil)
