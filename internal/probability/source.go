package probability

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/metrics"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/signals"
)

// ErrNoData means a source had nothing to offer for the request. It is a
// defined outcome, not a failure; the resolver moves on to the next tier.
var ErrNoData = eris.New("probability: no data")

// Source produces probability results for a set of risks. A source may cover
// only some of the requested risks.
type Source interface {
	Provenance() model.Provenance
	Probabilities(ctx context.Context, risks []model.RiskEvent, client model.ClientProfile) (map[string]model.ProbabilityResult, error)
}

// SignalFetcher is the part of signals.Hub the local source needs.
type SignalFetcher interface {
	FetchAll(ctx context.Context, sc signals.Context, force bool) signals.Signals
}

// LocalSource computes probabilities from fetched signals.
type LocalSource struct {
	engine  *Engine
	signals SignalFetcher
}

// NewLocalSource returns a source backed by engine and fetcher.
func NewLocalSource(engine *Engine, fetcher SignalFetcher) *LocalSource {
	return &LocalSource{engine: engine, signals: fetcher}
}

func (l *LocalSource) Provenance() model.Provenance { return model.ProvenanceLocal }

func (l *LocalSource) Probabilities(ctx context.Context, risks []model.RiskEvent, client model.ClientProfile) (map[string]model.ProbabilityResult, error) {
	sig := l.signals.FetchAll(ctx, signals.ContextFor(client), false)
	out := make(map[string]model.ProbabilityResult, len(risks))
	for _, r := range risks {
		out[r.ID] = l.engine.Calculate(r, client, sig)
	}
	return out, nil
}

// StaticSource returns each risk's catalog base probability with zero
// confidence. It always covers every risk.
type StaticSource struct {
	weights model.Weights
	now     func() time.Time
}

// NewStaticSource returns the last-resort tier.
func NewStaticSource(weights model.Weights) *StaticSource {
	return &StaticSource{weights: weights, now: func() time.Time { return time.Now().UTC() }}
}

func (s *StaticSource) Provenance() model.Provenance { return model.ProvenanceStatic }

func (s *StaticSource) Probabilities(_ context.Context, risks []model.RiskEvent, _ model.ClientProfile) (map[string]model.ProbabilityResult, error) {
	now := s.now()
	out := make(map[string]model.ProbabilityResult, len(risks))
	for _, r := range risks {
		out[r.ID] = model.ProbabilityResult{
			RiskID:       r.ID,
			Probability:  model.Clamp01(r.BaseProbability),
			Weights:      s.weights,
			CalculatedAt: now,
		}
	}
	return out, nil
}

// Resolver tries its sources in order. Each tier fills the risks the tiers
// before it left uncovered.
type Resolver struct {
	sources []Source
}

// NewResolver returns a resolver over sources in the given order.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Sources returns the provenance of each tier in order.
func (r *Resolver) Sources() []model.Provenance {
	out := make([]model.Provenance, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.Provenance()
	}
	return out
}

// CalculateAll returns one result per distinct risk ID that any tier covers.
// With a StaticSource last, that is every input risk.
func (r *Resolver) CalculateAll(ctx context.Context, risks []model.RiskEvent, client model.ClientProfile) map[string]model.ProbabilityResult {
	out := make(map[string]model.ProbabilityResult, len(risks))
	remaining := risks

	for _, src := range r.sources {
		if len(remaining) == 0 {
			break
		}
		prov := src.Provenance()

		res, err := src.Probabilities(ctx, remaining, client)
		if err != nil {
			r.logFallback(prov, err)
			continue
		}

		var missed []model.RiskEvent
		for _, risk := range remaining {
			pr, ok := res[risk.ID]
			if !ok {
				missed = append(missed, risk)
				continue
			}
			pr.RiskID = risk.ID
			pr.Provenance = prov
			out[risk.ID] = pr
			metrics.ProbabilityResults.WithLabelValues(string(prov)).Inc()
		}
		if len(missed) > 0 && len(missed) < len(remaining) {
			zap.L().Debug("probability: partial result, filling from next tier",
				zap.String("source", string(prov)),
				zap.Int("missing", len(missed)),
			)
		}
		remaining = missed
	}
	return out
}

func (r *Resolver) logFallback(prov model.Provenance, err error) {
	reason := "error"
	if errors.Is(err, ErrNoData) {
		reason = "no_data"
	} else if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	if prov == model.ProvenanceRemote {
		metrics.RemoteFallbacks.WithLabelValues(reason).Inc()
	}
	if reason == "no_data" {
		zap.L().Debug("probability: source had no data", zap.String("source", string(prov)))
		return
	}
	zap.L().Warn("probability: source unavailable, falling back",
		zap.String("source", string(prov)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}
