// Package signals fetches and normalizes the external indicators that feed
// the probability engine. Every fetch goes cache first, then a live call when
// one is configured, then a deterministic simulation, so a caller always gets
// an IndicatorSet back.
package signals

import (
	"strings"
	"time"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Category is one of the five signal families.
type Category string

const (
	Weather     Category = "weather"
	News        Category = "news"
	Economic    Category = "economic"
	Cyber       Category = "cyber"
	Operational Category = "operational"
)

// Categories lists every category in fetch order.
var Categories = []Category{Weather, News, Economic, Cyber, Operational}

// ParseCategory returns the category named s.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Data quality tags.
const (
	QualityLive      = "live_api"
	QualitySimulated = "simulated"
)

// Indicator names. Every value is in [0,1].
const (
	IndSeverity      = "severity"
	IndWind          = "wind"
	IndTemperature   = "temperature_extreme"
	IndPrecipitation = "precipitation"

	IndStress       = "stress"
	IndInflation    = "inflation"
	IndUnemployment = "unemployment"
	IndContraction  = "gdp_contraction"

	IndThreatLevel     = "threat_level"
	IndRansomware      = "ransomware"
	IndVulnerabilities = "vulnerabilities"

	IndDeviation   = "deviation"
	IndSupplyChain = "supply_chain"
	IndLabor       = "labor"

	IndCoverage = "coverage"
)

// primary maps each category to the indicator mirrored into the cache's
// numeric column and read as the category's current-conditions value.
var primary = map[Category]string{
	Weather:     IndSeverity,
	Economic:    IndStress,
	Cyber:       IndThreatLevel,
	Operational: IndDeviation,
	News:        IndCoverage,
}

// Trend is the three-state direction of an incident series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// trendThresholdPct is the change that separates stable from moving.
const trendThresholdPct = 10.0

// ClassifyTrend maps a percentage change to a Trend.
func ClassifyTrend(pct float64) Trend {
	switch {
	case pct > trendThresholdPct:
		return TrendIncreasing
	case pct < -trendThresholdPct:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Context is the client context a signal is fetched for.
type Context struct {
	Industry string `json:"industry"`
	Region   string `json:"region"`
	Location string `json:"location"`
}

// ContextFor builds a fetch context from a client profile.
func ContextFor(p model.ClientProfile) Context {
	region := p.Region
	if region == "" {
		region = p.Location
	}
	return Context{Industry: p.Industry, Region: region, Location: p.Location}
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Key returns the cache data key for category c. Each category is keyed only
// by the context fields it depends on.
func (sc Context) Key(c Category) string {
	switch c {
	case Weather:
		if loc := norm(sc.Location); loc != "" {
			return loc
		}
		return norm(sc.Region)
	case Economic:
		return norm(sc.Region)
	case Cyber, Operational:
		return norm(sc.Industry)
	default:
		return norm(sc.Industry) + "|" + norm(sc.Region)
	}
}

// DomainSignal is the incident picture for one risk domain.
type DomainSignal struct {
	Incidents int     `json:"incidents"`
	Trend     Trend   `json:"trend"`
	TrendPct  float64 `json:"trend_pct"`
}

// IndicatorSet is one normalized fetch result.
type IndicatorSet struct {
	Category   Category                      `json:"category"`
	Indicators map[string]float64            `json:"indicators"`
	Quality    string                        `json:"data_quality"`
	Source     string                        `json:"source"`
	Domains    map[model.Domain]DomainSignal `json:"domains,omitempty"`
	FetchedAt  time.Time                     `json:"fetched_at"`
}

// Live reports whether the set came from a live API.
func (s IndicatorSet) Live() bool {
	return s.Quality == QualityLive
}

// Indicator returns the named indicator clamped to [0,1] and whether it was
// present.
func (s IndicatorSet) Indicator(name string) (float64, bool) {
	v, ok := s.Indicators[name]
	if !ok {
		return 0, false
	}
	return model.Clamp01(v), true
}

// Primary returns the category's headline indicator.
func (s IndicatorSet) Primary() (float64, bool) {
	return s.Indicator(primary[s.Category])
}

// Domain returns the incident signal for d.
func (s IndicatorSet) Domain(d model.Domain) (DomainSignal, bool) {
	ds, ok := s.Domains[d]
	return ds, ok
}

// Signals holds one IndicatorSet per fetched category.
type Signals map[Category]IndicatorSet

// Get returns the set for c.
func (s Signals) Get(c Category) (IndicatorSet, bool) {
	set, ok := s[c]
	return set, ok
}
