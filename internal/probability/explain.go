package probability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Level is a coarse risk band for a probability.
type Level string

const (
	LevelHigh   Level = "HIGH"
	LevelMedium Level = "MEDIUM"
	LevelLow    Level = "LOW"
)

// Band lower bounds.
const (
	HighThreshold   = 0.65
	MediumThreshold = 0.40
)

// LevelOf classifies p.
func LevelOf(p float64) Level {
	switch {
	case p >= HighThreshold:
		return LevelHigh
	case p >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Summary aggregates a set of results.
type Summary struct {
	Count   int                      `json:"count"`
	Average float64                  `json:"average"`
	Levels  map[Level]int            `json:"levels"`
	Sources map[model.Provenance]int `json:"sources"`
}

// Summarize returns the average probability and the count per level and
// provenance. An empty input has a zero average.
func Summarize(results map[string]model.ProbabilityResult) Summary {
	s := Summary{
		Levels:  map[Level]int{LevelHigh: 0, LevelMedium: 0, LevelLow: 0},
		Sources: make(map[model.Provenance]int),
	}
	var total float64
	for _, r := range results {
		s.Count++
		total += r.Probability
		s.Levels[LevelOf(r.Probability)]++
		if r.Provenance != "" {
			s.Sources[r.Provenance]++
		}
	}
	if s.Count > 0 {
		s.Average = total / float64(s.Count)
	}
	return s
}

// Explain describes which factors drove a result, strongest weighted
// contribution first.
func Explain(risk model.RiskEvent, r model.ProbabilityResult) string {
	type part struct {
		name    string
		value   float64
		contrib float64
	}
	w := r.Weights
	parts := []part{
		{"historical frequency", r.Factors.HistoricalFrequency, r.Factors.HistoricalFrequency * w.HistoricalFrequency},
		{"trend direction", r.Factors.TrendDirection, r.Factors.TrendDirection * w.TrendDirection},
		{"current conditions", r.Factors.CurrentConditions, r.Factors.CurrentConditions * w.CurrentConditions},
		{"exposure", r.Factors.ExposureFactor, r.Factors.ExposureFactor * w.ExposureFactor},
	}
	sort.SliceStable(parts, func(a, b int) bool { return parts[a].contrib > parts[b].contrib })

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %.1f%% (%s, %s)", risk.Name, r.Probability*100, LevelOf(r.Probability), provenanceText(r.Provenance))

	if r.Provenance == model.ProvenanceStatic || w.Sum() == 0 || parts[0].contrib == 0 {
		b.WriteString(". Catalog baseline only.")
		return b.String()
	}

	b.WriteString(". Drivers:")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s %.2f", p.name, p.value)
	}
	fmt.Fprintf(&b, ". Confidence %.0f%% from %d live source(s).", r.Confidence*100, r.DataSourcesUsed)
	return b.String()
}

func provenanceText(p model.Provenance) string {
	switch p {
	case model.ProvenanceRemote:
		return "remote backend"
	case model.ProvenanceStatic:
		return "static fallback"
	default:
		return "local engine"
	}
}
