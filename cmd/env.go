package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/cache"
	"github.com/antonio-prism/prism-brain/internal/catalog"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/probability"
	"github.com/antonio-prism/prism-brain/internal/signals"
	"github.com/antonio-prism/prism-brain/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prism.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// scoringEnv holds the wired components shared by the scoring commands.
type scoringEnv struct {
	Store    store.Store
	Cache    cache.Cache
	Hub      *signals.Hub
	Resolver *probability.Resolver

	closeCache func() error
}

// initEnv opens the store, migrates it, and wires the cache, signal hub and
// probability tiers from cfg.
func initEnv(ctx context.Context) (*scoringEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	c, closeCache, err := cache.New(ctx, cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	hub := signals.NewHub(c, cfg.Fetch)
	env := &scoringEnv{
		Store:      st,
		Cache:      c,
		Hub:        hub,
		Resolver:   probability.New(cfg, hub),
		closeCache: closeCache,
	}

	zap.L().Debug("scoring environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("live", cfg.Fetch.Live),
		zap.Bool("remote", cfg.Remote.URL != ""),
	)
	return env, nil
}

// Close releases the cache connection and the store.
func (e *scoringEnv) Close() {
	if e.closeCache != nil {
		if err := e.closeCache(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// loadInputs reads the catalog and, when clientPath is set, the client file.
func loadInputs(catalogPath, clientPath string) ([]model.RiskEvent, *catalog.ClientFile, error) {
	if catalogPath == "" {
		return nil, nil, eris.New("--catalog is required")
	}
	risks, err := catalog.LoadRisks(catalogPath)
	if err != nil {
		return nil, nil, err
	}
	if clientPath == "" {
		return risks, nil, nil
	}
	cf, err := catalog.LoadClient(clientPath)
	if err != nil {
		return nil, nil, err
	}
	return risks, cf, nil
}
