package signals

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/antonio-prism/prism-brain/internal/cache"
	"github.com/antonio-prism/prism-brain/internal/config"
	"github.com/antonio-prism/prism-brain/internal/metrics"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/resilience"
)

// LiveClient fetches one category from a remote API.
type LiveClient interface {
	Name() string
	Fetch(ctx context.Context, sc Context) (IndicatorSet, error)
}

// Hub resolves signals through the cache, the live clients and the
// simulator. Fetch never fails; the worst case is simulated data.
type Hub struct {
	cache    cache.Cache
	live     map[Category]LiveClient
	ttl      func(Category) time.Duration
	timeout  time.Duration
	breakers *resilience.Breakers
	group    singleflight.Group
	now      func() time.Time
}

// NewHub builds a hub over c. Live clients are registered only when
// fetch.live is on and, for keyed APIs, a key is configured.
func NewHub(c cache.Cache, cfg config.FetchConfig) *Hub {
	h := &Hub{
		cache:    c,
		live:     make(map[Category]LiveClient),
		ttl:      func(cat Category) time.Duration { return cfg.TTL(string(cat)) },
		timeout:  cfg.Timeout(),
		breakers: resilience.NewBreakers(resilience.FromFetchConfig(cfg)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if h.timeout <= 0 {
		h.timeout = 10 * time.Second
	}
	if !cfg.Live {
		return h
	}

	if cfg.OpenWeatherMapKey != "" {
		h.live[Weather] = NewOpenWeatherMap(newJSONClient(h.timeout, cfg.RatePerSec), cfg.OpenWeatherMapURL, cfg.OpenWeatherMapKey)
	}
	if cfg.NewsAPIKey != "" {
		h.live[News] = NewNewsAPI(newJSONClient(h.timeout, cfg.RatePerSec), cfg.NewsAPIURL, cfg.NewsAPIKey)
	}
	if cfg.WorldBankURL != "" {
		h.live[Economic] = NewWorldBank(newJSONClient(h.timeout, cfg.RatePerSec), cfg.WorldBankURL)
	}
	return h
}

// WithLive registers lc as the live client for c.
func (h *Hub) WithLive(c Category, lc LiveClient) *Hub {
	h.live[c] = lc
	return h
}

// WithClock replaces the clock stamped on fetched sets.
func (h *Hub) WithClock(now func() time.Time) *Hub {
	h.now = now
	return h
}

// WithTimeout replaces the live call budget.
func (h *Hub) WithTimeout(d time.Duration) *Hub {
	h.timeout = d
	return h
}

// LiveSources returns the live client name per category that has one.
func (h *Hub) LiveSources() map[Category]string {
	out := make(map[Category]string, len(h.live))
	for c, lc := range h.live {
		out[c] = lc.Name()
	}
	return out
}

// BreakerStates reports the breaker state of every live client used so far.
func (h *Hub) BreakerStates() map[string]string {
	out := make(map[string]string)
	for name, st := range h.breakers.States() {
		out[name] = st.String()
	}
	return out
}

// Fetch returns the IndicatorSet for c. A forced fetch skips the cache read
// but still writes its result back. Concurrent fetches of the same key share
// one result, which callers must treat as read only.
func (h *Hub) Fetch(ctx context.Context, c Category, sc Context, force bool) IndicatorSet {
	key := sc.Key(c)
	flightKey := string(c) + "\x00" + key
	if force {
		flightKey += "\x00force"
	}

	v, _, _ := h.group.Do(flightKey, func() (any, error) {
		return h.resolve(ctx, c, sc, key, force), nil
	})
	set := v.(IndicatorSet)
	metrics.SignalFetches.WithLabelValues(string(c), set.Quality).Inc()
	return set
}

// FetchAll fetches every category concurrently.
func (h *Hub) FetchAll(ctx context.Context, sc Context, force bool) Signals {
	out := make(Signals, len(Categories))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range Categories {
		g.Go(func() error {
			set := h.Fetch(gctx, c, sc, force)
			mu.Lock()
			out[c] = set
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (h *Hub) resolve(ctx context.Context, c Category, sc Context, key string, force bool) IndicatorSet {
	if !force {
		if set, ok := h.readCache(ctx, c, key); ok {
			return set
		}
	}

	set, ok := h.fetchLive(ctx, c, sc)
	if !ok {
		set = Simulate(c, sc)
	}
	set.FetchedAt = h.now()
	h.writeCache(ctx, c, key, set)
	return set
}

func (h *Hub) readCache(ctx context.Context, c Category, key string) (IndicatorSet, bool) {
	entry, err := h.cache.GetCached(ctx, string(c), key)
	if err != nil {
		zap.L().Warn("signals: cache read failed, refetching",
			zap.String("category", string(c)),
			zap.String("key", key),
			zap.Error(err),
		)
		return IndicatorSet{}, false
	}
	if entry == nil {
		return IndicatorSet{}, false
	}

	var set IndicatorSet
	if err := json.Unmarshal([]byte(entry.DataValue), &set); err != nil || set.Category != c || set.Quality == "" {
		zap.L().Warn("signals: corrupt cache entry treated as miss",
			zap.String("category", string(c)),
			zap.String("key", key),
			zap.Error(err),
		)
		return IndicatorSet{}, false
	}
	return set, true
}

func (h *Hub) fetchLive(ctx context.Context, c Category, sc Context) (IndicatorSet, bool) {
	lc, ok := h.live[c]
	if !ok {
		return IndicatorSet{}, false
	}

	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	set, err := resilience.DoVal(cctx, h.breakers.Get(lc.Name()), func(ctx context.Context) (IndicatorSet, error) {
		return lc.Fetch(ctx, sc)
	})
	if err != nil {
		metrics.LiveFetchFailures.WithLabelValues(string(c)).Inc()
		zap.L().Warn("signals: live fetch failed, using simulated data",
			zap.String("category", string(c)),
			zap.String("source", lc.Name()),
			zap.Error(err),
		)
		return IndicatorSet{}, false
	}

	set.Category = c
	set.Quality = QualityLive
	set.Source = lc.Name()
	for k, v := range set.Indicators {
		set.Indicators[k] = model.Clamp01(v)
	}
	return set, true
}

func (h *Hub) writeCache(ctx context.Context, c Category, key string, set IndicatorSet) {
	data, err := json.Marshal(set)
	if err != nil {
		zap.L().Warn("signals: marshal indicator set", zap.String("category", string(c)), zap.Error(err))
		return
	}
	entry := model.CacheEntry{
		SourceName: string(c),
		DataKey:    key,
		Category:   string(c),
		DataValue:  string(data),
	}
	if v, ok := set.Primary(); ok {
		entry.NumericValue = &v
	}
	if err := h.cache.PutCached(ctx, entry, h.ttl(c)); err != nil {
		zap.L().Warn("signals: cache write failed",
			zap.String("category", string(c)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Summary is a one-line view of a fetched set.
type Summary struct {
	Category  Category  `json:"category"`
	Quality   string    `json:"data_quality"`
	Source    string    `json:"source"`
	Primary   float64   `json:"primary"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Summarize lists s in category order.
func Summarize(s Signals) []Summary {
	out := make([]Summary, 0, len(s))
	for c, set := range s {
		p, _ := set.Primary()
		out = append(out, Summary{Category: c, Quality: set.Quality, Source: set.Source, Primary: p, FetchedAt: set.FetchedAt})
	}
	order := make(map[Category]int, len(Categories))
	for i, c := range Categories {
		order[c] = i
	}
	sort.Slice(out, func(a, b int) bool { return order[out[a].Category] < order[out[b].Category] })
	return out
}
