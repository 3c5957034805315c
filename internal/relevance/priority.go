package relevance

import (
	"github.com/antonio-prism/prism-brain/internal/keywords"
	"github.com/antonio-prism/prism-brain/internal/model"
)

// Prioritization view weights.
const (
	priorityBase        = 50.0
	priorityIndustry    = 15.0
	prioritySuperRisk   = 20.0
	priorityHighProb    = 15.0
	priorityMediumProb  = 10.0
	priorityDomainMatch = 10.0

	highProbability   = 0.6
	mediumProbability = 0.4
)

// industryDomains lists the domains each industry is most exposed to.
var industryDomains = map[string][]model.Domain{
	"manufacturing": {model.DomainPhysical, model.DomainOperational},
	"technology":    {model.DomainDigital, model.DomainOperational},
	"finance":       {model.DomainDigital, model.DomainStructural},
	"healthcare":    {model.DomainOperational, model.DomainDigital},
	"retail":        {model.DomainStructural, model.DomainOperational},
	"energy":        {model.DomainPhysical, model.DomainOperational},
}

// PriorityScore scores an already selected risk for the prioritization view
// using its current probability. The result is capped at MaxScore.
func PriorityScore(risk model.RiskEvent, client model.ClientProfile, probability float64) float64 {
	score := priorityBase

	if keywords.Contains(risk.Description, client.Industry) {
		score += priorityIndustry
	}
	if risk.IsSuperRisk {
		score += prioritySuperRisk
	}

	switch p := model.Clamp01(probability); {
	case p >= highProbability:
		score += priorityHighProb
	case p >= mediumProbability:
		score += priorityMediumProb
	}

	if IndustryAffinity(client.Industry, risk.Domain) {
		score += priorityDomainMatch
	}
	return Cap(score)
}

// IndustryAffinity reports whether domain is a primary exposure of industry.
func IndustryAffinity(industry string, domain model.Domain) bool {
	for _, d := range industryDomains[keywords.Normalize(industry)] {
		if d == domain {
			return true
		}
	}
	return false
}
