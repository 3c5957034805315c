package probability

import (
	"github.com/antonio-prism/prism-brain/internal/config"
)

// New wires the standard tier order from cfg: remote when a URL is
// configured, then the local engine over fetcher, then the static catalog
// baseline.
func New(cfg *config.Config, fetcher SignalFetcher) *Resolver {
	engine := NewEngine(cfg.Probability)

	var sources []Source
	if cfg.Remote.URL != "" {
		sources = append(sources, NewRemoteSource(cfg.Remote, engine.Weights()))
	}
	sources = append(sources,
		NewLocalSource(engine, fetcher),
		NewStaticSource(engine.Weights()),
	)
	return NewResolver(sources...)
}
