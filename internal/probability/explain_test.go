package probability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antonio-prism/prism-brain/internal/model"
)

func TestLevelOf(t *testing.T) {
	assert.Equal(t, LevelHigh, LevelOf(0.65))
	assert.Equal(t, LevelHigh, LevelOf(1))
	assert.Equal(t, LevelMedium, LevelOf(0.6499))
	assert.Equal(t, LevelMedium, LevelOf(0.40))
	assert.Equal(t, LevelLow, LevelOf(0.3999))
	assert.Equal(t, LevelLow, LevelOf(0))
}

func TestSummarize(t *testing.T) {
	s := Summarize(map[string]model.ProbabilityResult{
		"A": {Probability: 0.8, Provenance: model.ProvenanceRemote},
		"B": {Probability: 0.5, Provenance: model.ProvenanceLocal},
		"C": {Probability: 0.2, Provenance: model.ProvenanceLocal},
		"D": {Probability: 0.1, Provenance: model.ProvenanceStatic},
	})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 0.4, s.Average, 1e-9)
	assert.Equal(t, map[Level]int{LevelHigh: 1, LevelMedium: 1, LevelLow: 2}, s.Levels)
	assert.Equal(t, 2, s.Sources[model.ProvenanceLocal])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Average)
	assert.Equal(t, 0, s.Levels[LevelHigh])
}

func TestExplain_Local(t *testing.T) {
	r := testEngine().Calculate(ransomware, acme, liveSignals())
	text := Explain(ransomware, r)

	assert.True(t, strings.HasPrefix(text, "Ransomware attack on production systems: 73."), text)
	assert.Contains(t, text, "(HIGH, local engine)")
	assert.Contains(t, text, "current conditions 0.80")
	assert.Contains(t, text, "Confidence 75% from 2 live source(s).")
	assert.Less(t, strings.Index(text, "current conditions"), strings.Index(text, "historical frequency"))
}

func TestExplain_Static(t *testing.T) {
	r := model.ProbabilityResult{Probability: 0.2, Weights: model.DefaultWeights(), Provenance: model.ProvenanceStatic}
	text := Explain(monsoon, r)
	assert.Equal(t, "Monsoon flooding: 20.0% (LOW, static fallback). Catalog baseline only.", text)
}
