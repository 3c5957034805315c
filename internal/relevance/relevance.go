// Package relevance ranks catalog risks by how relevant they are to a
// client profile.
package relevance

import (
	"math"
	"sort"

	"github.com/antonio-prism/prism-brain/internal/keywords"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/pareto"
)

// MaxScore caps scores in the prioritization view.
const MaxScore = 100.0

// Bonuses applied by RawScore.
const (
	baselineMultiplier = 10.0
	industryBonus      = 5.0
	allIndustriesBonus = 3.0
	sectorBonus        = 2.0
	globalBonus        = 2.0
	europeBonus        = 3.0
	shippingBonus      = 3.0
	tradeBonus         = 2.0
	superRiskBonus     = 5.0

	exportDependentPct = 50.0
)

type entry struct {
	risk  model.RiskEvent
	terms keywords.Terms
}

// Scorer holds a catalog with its keywords normalized once.
type Scorer struct {
	catalog []entry
}

// NewScorer prepares catalog for repeated scoring. Catalog order is kept as
// the tie-break order.
func NewScorer(catalog []model.RiskEvent) *Scorer {
	s := &Scorer{catalog: make([]entry, len(catalog))}
	for i, r := range catalog {
		s.catalog[i] = entry{risk: r, terms: keywords.For(r)}
	}
	return s
}

// Len returns the catalog size.
func (s *Scorer) Len() int { return len(s.catalog) }

// Score returns uncapped scores for the selected risks, highest first.
// Equal scores keep catalog order.
func (s *Scorer) Score(profile model.ClientProfile, sel model.SelectionContext) []model.RelevanceScore {
	out := make([]model.RelevanceScore, 0, len(s.catalog))
	for _, e := range s.catalog {
		if !sel.RiskSelected(e.risk.ID) {
			continue
		}
		c := components(e.risk, e.terms, profile)
		out = append(out, model.RelevanceScore{
			RiskID:     e.risk.ID,
			RiskName:   e.risk.Name,
			Domain:     e.risk.Domain,
			Score:      c.Total(),
			Components: c,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// Capped is Score with every score limited to MaxScore. Components are left
// as computed.
func (s *Scorer) Capped(profile model.ClientProfile, sel model.SelectionContext) []model.RelevanceScore {
	scores := s.Score(profile, sel)
	for i := range scores {
		scores[i].Score = Cap(scores[i].Score)
	}
	return scores
}

// Select keeps the scores at or above sel.MinRiskScore, preserving rank
// order.
func Select(scores []model.RelevanceScore, sel model.SelectionContext) []model.RelevanceScore {
	return pareto.SelectByMinimumScore(scores, func(r model.RelevanceScore) float64 { return r.Score }, sel.MinRiskScore)
}

// Score is a one-shot NewScorer(risks).Score.
func Score(risks []model.RiskEvent, profile model.ClientProfile, sel model.SelectionContext) []model.RelevanceScore {
	return NewScorer(risks).Score(profile, sel)
}

// RawScore is the uncapped relevance of risk to profile.
func RawScore(risk model.RiskEvent, profile model.ClientProfile) float64 {
	return Components(risk, profile).Total()
}

// CappedScore is RawScore limited to MaxScore.
func CappedScore(risk model.RiskEvent, profile model.ClientProfile) float64 {
	return Cap(RawScore(risk, profile))
}

// Cap limits score to MaxScore.
func Cap(score float64) float64 {
	return math.Min(score, MaxScore)
}

// Components breaks down the relevance of risk to profile.
func Components(risk model.RiskEvent, profile model.ClientProfile) model.RelevanceComponents {
	return components(risk, keywords.For(risk), profile)
}

func components(risk model.RiskEvent, t keywords.Terms, p model.ClientProfile) model.RelevanceComponents {
	var c model.RelevanceComponents

	c.Baseline = model.Clamp01(risk.BaseProbability) * baselineMultiplier

	if t.MentionsIndustry(p.Industry) {
		c.Industry += industryBonus
	}
	if t.AllIndustries {
		c.Industry += allIndustriesBonus
	}

	for _, sector := range p.Sectors {
		if t.MentionsIndustry(sector) {
			c.Sector += sectorBonus
		}
	}

	if t.Global {
		c.Geography += globalBonus
	}
	if t.Europe && keywords.Contains(p.Location, "europe") {
		c.Geography += europeBonus
	}

	if p.ExportPercentage > exportDependentPct {
		if t.NameHas("shipping") {
			c.Export += shippingBonus
		}
		if t.NameHas("trade") {
			c.Export += tradeBonus
		}
	}

	if risk.IsSuperRisk {
		c.SuperRisk = superRiskBonus
	}
	return c
}
