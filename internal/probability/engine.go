// Package probability turns external signals into a calibrated probability
// per risk event and resolves results across the remote, local and static
// tiers.
package probability

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/config"
	"github.com/antonio-prism/prism-brain/internal/keywords"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/signals"
)

const (
	defaultCeiling = 50.0
	// neutral is used for trend and current conditions without data.
	neutral = 0.5
)

// conditionCategory maps a domain to the signal that describes its current
// conditions.
var conditionCategory = map[model.Domain]signals.Category{
	model.DomainPhysical:    signals.Weather,
	model.DomainStructural:  signals.Economic,
	model.DomainDigital:     signals.Cyber,
	model.DomainOperational: signals.Operational,
}

// Engine computes the four-factor probability for one risk.
type Engine struct {
	weights     model.Weights
	ceilings    map[model.Domain]float64
	exposureMid float64
	exposureLow float64
	now         func() time.Time
}

// NewEngine builds an engine from cfg. Incident ceilings are matched to
// domains case-insensitively.
func NewEngine(cfg config.ProbabilityConfig) *Engine {
	e := &Engine{
		weights:     cfg.Weights,
		ceilings:    make(map[model.Domain]float64, len(cfg.IncidentCeilings)),
		exposureMid: cfg.ExposureMid,
		exposureLow: cfg.ExposureLow,
		now:         func() time.Time { return time.Now().UTC() },
	}
	e.weights = normalizeWeights(cfg.Weights)
	for name, ceiling := range cfg.IncidentCeilings {
		if d, ok := model.ParseDomain(name); ok && ceiling > 0 {
			e.ceilings[d] = ceiling
		}
	}
	return e
}

// normalizeWeights rescales w to sum to 1.0. Negative or all-zero weights
// are replaced by the defaults.
func normalizeWeights(w model.Weights) model.Weights {
	if len(config.ValidateWeights(w)) == 0 {
		return w
	}
	sum := w.Sum()
	if sum <= 0 || w.HistoricalFrequency < 0 || w.TrendDirection < 0 ||
		w.CurrentConditions < 0 || w.ExposureFactor < 0 {
		zap.L().Warn("probability: invalid factor weights, using defaults", zap.Float64("sum", sum))
		return model.DefaultWeights()
	}
	zap.L().Warn("probability: factor weights rescaled to sum to 1.0", zap.Float64("sum", sum))
	return model.Weights{
		HistoricalFrequency: w.HistoricalFrequency / sum,
		TrendDirection:      w.TrendDirection / sum,
		CurrentConditions:   w.CurrentConditions / sum,
		ExposureFactor:      w.ExposureFactor / sum,
	}
}

// WithClock replaces the clock stamped on results.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Weights returns the configured factor weights.
func (e *Engine) Weights() model.Weights { return e.weights }

func (e *Engine) ceiling(d model.Domain) float64 {
	if c, ok := e.ceilings[d]; ok {
		return c
	}
	return defaultCeiling
}

// factorSources tracks which factors were backed by live data.
type factorSources struct {
	live    int
	sources map[string]struct{}
}

func (fs *factorSources) add(set signals.IndicatorSet) {
	if !set.Live() {
		return
	}
	fs.live++
	fs.sources[set.Source] = struct{}{}
}

// Calculate derives the probability of risk for client from sig. Missing
// signals fall back to the base probability prior or a neutral value.
func (e *Engine) Calculate(risk model.RiskEvent, client model.ClientProfile, sig signals.Signals) model.ProbabilityResult {
	fs := &factorSources{sources: make(map[string]struct{})}
	var f model.Factors

	news, hasNews := sig.Get(signals.News)
	ds, hasDomain := news.Domain(risk.Domain)

	// Historical frequency.
	if hasNews && hasDomain && ds.Incidents > 0 {
		f.HistoricalFrequency = model.Clamp01(float64(ds.Incidents) / e.ceiling(risk.Domain))
		fs.add(news)
	} else {
		f.HistoricalFrequency = model.Clamp01(risk.BaseProbability)
	}

	// Trend direction.
	if hasNews && hasDomain {
		f.TrendDirection = TrendFactor(ds.Trend, ds.TrendPct)
		fs.add(news)
	} else {
		f.TrendDirection = neutral
	}

	// Current conditions.
	f.CurrentConditions = neutral
	if cat, ok := conditionCategory[risk.Domain]; ok {
		if set, ok := sig.Get(cat); ok {
			if v, ok := set.Primary(); ok {
				f.CurrentConditions = v
				fs.add(set)
			}
		}
	}

	// Exposure factor. The location-resolved weather signal confirms the
	// client's geography.
	f.ExposureFactor = e.exposure(keywords.For(risk), client)
	if w, ok := sig.Get(signals.Weather); ok {
		fs.add(w)
	}

	return model.ProbabilityResult{
		RiskID:          risk.ID,
		Probability:     model.Clamp01(e.weights.Apply(f)),
		Factors:         f,
		Weights:         e.weights,
		Confidence:      model.Clamp01(float64(fs.live) / 4),
		CalculatedAt:    e.now(),
		DataSourcesUsed: len(fs.sources),
		Provenance:      model.ProvenanceLocal,
	}
}

// exposure scores how directly the risk's scope names the client.
func (e *Engine) exposure(t keywords.Terms, client model.ClientProfile) float64 {
	if t.MentionsIndustry(client.Industry) || t.MentionsPlace(client.Region) || t.MentionsPlace(client.Location) {
		return 1
	}
	if t.AllIndustries || t.Global {
		return model.Clamp01(e.exposureMid)
	}
	return model.Clamp01(e.exposureLow)
}

// TrendFactor maps a trend and its percentage change into [0,1], 0.5 at
// stable. A change of 100% or more saturates.
func TrendFactor(trend signals.Trend, pct float64) float64 {
	mag := pct
	if mag < 0 {
		mag = -mag
	}
	if mag > 100 {
		mag = 100
	}
	switch signals.Trend(strings.ToLower(string(trend))) {
	case signals.TrendIncreasing:
		return neutral + mag/200
	case signals.TrendDecreasing:
		return neutral - mag/200
	default:
		return neutral
	}
}
