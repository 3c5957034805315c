package model

import "strings"

// Domain is one of the four top-level risk categories.
type Domain string

const (
	DomainPhysical    Domain = "PHYSICAL"
	DomainStructural  Domain = "STRUCTURAL"
	DomainOperational Domain = "OPERATIONAL"
	DomainDigital     Domain = "DIGITAL"
)

// Domains lists every domain in catalog order.
var Domains = []Domain{DomainPhysical, DomainStructural, DomainOperational, DomainDigital}

// ParseDomain normalizes free-form domain text ("Physical", "digital ") to a
// Domain. The second return is false for unknown values.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case DomainPhysical, DomainStructural, DomainOperational, DomainDigital:
		return d, true
	}
	return "", false
}

// Valid reports whether d is one of the four known domains.
func (d Domain) Valid() bool {
	_, ok := ParseDomain(string(d))
	return ok
}

// RiskEvent is a cataloged disruption scenario. Catalog data is never mutated.
type RiskEvent struct {
	ID                 string  `json:"id" yaml:"id"`
	Name               string  `json:"name" yaml:"name"`
	Domain             Domain  `json:"domain" yaml:"domain"`
	Category           string  `json:"category" yaml:"category"`
	Description        string  `json:"description" yaml:"description"`
	GeographicScope    string  `json:"geographic_scope" yaml:"geographic_scope"`
	IsSuperRisk        bool    `json:"is_super_risk" yaml:"is_super_risk"`
	BaseProbability    float64 `json:"base_probability" yaml:"base_probability"`
	AffectedIndustries string  `json:"affected_industries" yaml:"affected_industries"`
}
