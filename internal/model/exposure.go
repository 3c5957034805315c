package model

import "time"

// ExposureRecord is one assessed process–risk pair.
type ExposureRecord struct {
	ClientID      string    `json:"client_id"`
	ProcessID     string    `json:"process_id"`
	ProcessName   string    `json:"process_name"`
	RiskID        string    `json:"risk_id"`
	RiskName      string    `json:"risk_name"`
	Domain        Domain    `json:"domain"`
	Criticality   float64   `json:"criticality"`
	Vulnerability float64   `json:"vulnerability"`
	Resilience    float64   `json:"resilience"`
	Downtime      float64   `json:"downtime"`
	Probability   float64   `json:"probability"`
	Exposure      float64   `json:"exposure"`
	AssessedAt    time.Time `json:"assessed_at"`
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampNonNegative bounds v to [0,∞).
func ClampNonNegative(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}

// Normalize returns a copy of r with every input clamped to its valid range.
func (r ExposureRecord) Normalize() ExposureRecord {
	r.Criticality = ClampNonNegative(r.Criticality)
	r.Vulnerability = Clamp01(r.Vulnerability)
	r.Resilience = Clamp01(r.Resilience)
	r.Downtime = ClampNonNegative(r.Downtime)
	r.Probability = Clamp01(r.Probability)
	return r
}
