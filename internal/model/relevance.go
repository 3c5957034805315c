package model

// RelevanceComponents breaks a relevance score into its contributions.
type RelevanceComponents struct {
	Baseline  float64 `json:"baseline"`
	Industry  float64 `json:"industry"`
	Sector    float64 `json:"sector"`
	Geography float64 `json:"geography"`
	Export    float64 `json:"export"`
	SuperRisk float64 `json:"super_risk"`
}

// Total sums every component.
func (c RelevanceComponents) Total() float64 {
	return c.Baseline + c.Industry + c.Sector + c.Geography + c.Export + c.SuperRisk
}

// RelevanceScore is a derived, per-request ranking value for one risk.
type RelevanceScore struct {
	RiskID     string              `json:"risk_id"`
	RiskName   string              `json:"risk_name"`
	Domain     Domain              `json:"domain"`
	Score      float64             `json:"score"`
	Components RelevanceComponents `json:"components"`
}
