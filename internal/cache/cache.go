// Package cache provides the time-boxed key/value cache for fetched external
// signals. Entries are keyed by (source name, data key); writes are upserts
// and an entry whose expiry is at or before now is never returned.
package cache

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/config"
	"github.com/antonio-prism/prism-brain/internal/metrics"
	"github.com/antonio-prism/prism-brain/internal/model"
)

// Backend names accepted by cache.backend.
const (
	BackendStore  = "store"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache is the external data cache contract. GetCached returns nil, nil on a
// miss.
type Cache interface {
	GetCached(ctx context.Context, sourceName, dataKey string) (*model.CacheEntry, error)
	PutCached(ctx context.Context, entry model.CacheEntry, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int, error)
	CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error)
}

// New builds the cache selected by cfg.Cache.Backend. The store backend reuses
// st, which is normally the configured database. The returned close func
// releases any connection New opened.
func New(ctx context.Context, cfg *config.Config, st Cache) (Cache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Cache.Backend {
	case BackendStore, "":
		if st == nil {
			return nil, nil, eris.New("cache: store backend requires a store")
		}
		return Instrument(BackendStore, st), noop, nil
	case BackendMemory:
		return Instrument(BackendMemory, NewMemory()), noop, nil
	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close() //nolint:errcheck
			return nil, nil, eris.Wrapf(err, "cache: ping redis %s", cfg.Redis.Addr)
		}
		return Instrument(BackendRedis, NewRedis(rdb, cfg.Redis.Prefix)), rdb.Close, nil
	default:
		return nil, nil, eris.Errorf("cache: unsupported backend %q", cfg.Cache.Backend)
	}
}

// Instrument wraps c so that lookups and purges are counted under backend.
func Instrument(backend string, c Cache) Cache {
	return &instrumented{backend: backend, next: c}
}

type instrumented struct {
	backend string
	next    Cache
}

func (i *instrumented) GetCached(ctx context.Context, sourceName, dataKey string) (*model.CacheEntry, error) {
	e, err := i.next.GetCached(ctx, sourceName, dataKey)
	if err != nil {
		return nil, err
	}
	result := metrics.ResultHit
	if e == nil {
		result = metrics.ResultMiss
	}
	metrics.CacheLookups.WithLabelValues(i.backend, result).Inc()
	return e, nil
}

func (i *instrumented) PutCached(ctx context.Context, entry model.CacheEntry, ttl time.Duration) error {
	return i.next.PutCached(ctx, entry, ttl)
}

func (i *instrumented) PurgeExpired(ctx context.Context) (int, error) {
	n, err := i.next.PurgeExpired(ctx)
	if err == nil && n > 0 {
		metrics.CachePurged.WithLabelValues(i.backend).Add(float64(n))
	}
	return n, err
}

func (i *instrumented) CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error) {
	return i.next.CacheFreshness(ctx)
}

// freshness aggregates entries per category, sorted by category name.
func freshness(entries []model.CacheEntry, now time.Time) []model.CacheFreshness {
	byCat := make(map[string]*model.CacheFreshness)
	for _, e := range entries {
		f, ok := byCat[e.Category]
		if !ok {
			f = &model.CacheFreshness{Category: e.Category, Oldest: e.FetchedAt, Newest: e.FetchedAt}
			byCat[e.Category] = f
		}
		f.Entries++
		if !e.Live(now) {
			f.Expired++
		}
		if e.FetchedAt.Before(f.Oldest) {
			f.Oldest = e.FetchedAt
		}
		if e.FetchedAt.After(f.Newest) {
			f.Newest = e.FetchedAt
		}
	}

	out := make([]model.CacheFreshness, 0, len(byCat))
	for _, f := range byCat {
		out = append(out, *f)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Category < out[b].Category })
	return out
}
