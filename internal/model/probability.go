package model

import "time"

// Provenance records which tier produced a probability.
type Provenance string

const (
	ProvenanceRemote Provenance = "remote"
	ProvenanceLocal  Provenance = "local"
	ProvenanceStatic Provenance = "static"
)

// Factors holds the four probability factor values, each in [0,1].
type Factors struct {
	HistoricalFrequency float64 `json:"historical_frequency"`
	TrendDirection      float64 `json:"trend_direction"`
	CurrentConditions   float64 `json:"current_conditions"`
	ExposureFactor      float64 `json:"exposure_factor"`
}

// Weights holds the factor weights. They always sum to 1.0.
type Weights struct {
	HistoricalFrequency float64 `json:"historical_frequency" mapstructure:"historical_frequency"`
	TrendDirection      float64 `json:"trend_direction" mapstructure:"trend_direction"`
	CurrentConditions   float64 `json:"current_conditions" mapstructure:"current_conditions"`
	ExposureFactor      float64 `json:"exposure_factor" mapstructure:"exposure_factor"`
}

// DefaultWeights returns 0.30/0.25/0.25/0.20.
func DefaultWeights() Weights {
	return Weights{
		HistoricalFrequency: 0.30,
		TrendDirection:      0.25,
		CurrentConditions:   0.25,
		ExposureFactor:      0.20,
	}
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.HistoricalFrequency + w.TrendDirection + w.CurrentConditions + w.ExposureFactor
}

// Apply returns Σ factor × weight.
func (w Weights) Apply(f Factors) float64 {
	return f.HistoricalFrequency*w.HistoricalFrequency +
		f.TrendDirection*w.TrendDirection +
		f.CurrentConditions*w.CurrentConditions +
		f.ExposureFactor*w.ExposureFactor
}

// ProbabilityResult is the calibrated probability for one risk event. It is
// recomputed on demand and always replaced as a whole.
type ProbabilityResult struct {
	RiskID          string     `json:"risk_id,omitempty"`
	Probability     float64    `json:"probability"`
	Factors         Factors    `json:"factors"`
	Weights         Weights    `json:"weights"`
	Confidence      float64    `json:"confidence"`
	CalculatedAt    time.Time  `json:"calculated_at"`
	DataSourcesUsed int        `json:"data_sources_used"`
	Provenance      Provenance `json:"provenance,omitempty"`
}
