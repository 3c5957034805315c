package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/metrics"
	"github.com/antonio-prism/prism-brain/internal/model"
)

const scanBatch = 100

// Redis stores each entry as a JSON document under prefix+source+":"+key with
// a native TTL. Expiry is also checked against the injected clock so that
// both clocks agree on what a miss is.
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for expiry decisions.
func (r *Redis) WithClock(now func() time.Time) *Redis {
	r.now = now
	return r
}

func (r *Redis) fullKey(sourceName, dataKey string) string {
	return r.prefix + sourceName + ":" + dataKey
}

func (r *Redis) GetCached(ctx context.Context, sourceName, dataKey string) (*model.CacheEntry, error) {
	key := r.fullKey(sourceName, dataKey)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: redis get %s", key)
	}

	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		metrics.CacheLookups.WithLabelValues(BackendRedis, metrics.ResultCorrupt).Inc()
		zap.L().Warn("cache: corrupt redis entry treated as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, nil
	}
	if !e.Live(r.now()) {
		return nil, nil
	}
	return &e, nil
}

func (r *Redis) PutCached(ctx context.Context, entry model.CacheEntry, ttl time.Duration) error {
	key := r.fullKey(entry.SourceName, entry.DataKey)
	if ttl <= 0 {
		// A zero TTL means "no expiry" to Redis; an already-expired entry is
		// simply absent.
		return eris.Wrapf(r.rdb.Del(ctx, key).Err(), "cache: redis del %s", key)
	}

	now := r.now()
	entry.FetchedAt = now
	entry.ExpiresAt = now.Add(ttl)
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}
	return eris.Wrapf(r.rdb.Set(ctx, key, data, ttl).Err(), "cache: redis set %s", key)
}

// scan calls fn for every key under the prefix with its decoded entry. A nil
// entry means the payload could not be decoded.
func (r *Redis) scan(ctx context.Context, fn func(key string, e *model.CacheEntry) error) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return eris.Wrap(err, "cache: redis scan")
		}
		for _, key := range keys {
			raw, err := r.rdb.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return eris.Wrapf(err, "cache: redis get %s", key)
			}
			var e model.CacheEntry
			if json.Unmarshal(raw, &e) != nil {
				if err := fn(key, nil); err != nil {
					return err
				}
				continue
			}
			if err := fn(key, &e); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// PurgeExpired deletes entries that are expired by the injected clock and
// entries whose payload is corrupt.
func (r *Redis) PurgeExpired(ctx context.Context) (int, error) {
	now := r.now()
	var stale []string
	err := r.scan(ctx, func(key string, e *model.CacheEntry) error {
		if e == nil || !e.Live(now) {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := r.rdb.Del(ctx, stale...).Result()
	if err != nil {
		return 0, eris.Wrap(err, "cache: redis purge")
	}
	return int(n), nil
}

func (r *Redis) CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error) {
	var all []model.CacheEntry
	err := r.scan(ctx, func(_ string, e *model.CacheEntry) error {
		if e != nil {
			all = append(all, *e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return freshness(all, r.now()), nil
}
