package model

// ClientProfile is the operational profile of a client. Owned by the CRUD
// layer; read only here.
type ClientProfile struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Industry         string   `json:"industry" yaml:"industry"`
	Sectors          []string `json:"sectors" yaml:"sectors"`
	Location         string   `json:"location" yaml:"location"`
	Region           string   `json:"region,omitempty" yaml:"region"`
	ExportPercentage float64  `json:"export_percentage" yaml:"export_percentage"`
	Currency         string   `json:"currency" yaml:"currency"`
	Revenue          float64  `json:"revenue" yaml:"revenue"`
}

// ProcessRecord is a client business process with its daily criticality.
type ProcessRecord struct {
	ID                string  `json:"id" yaml:"id"`
	Name              string  `json:"name" yaml:"name"`
	Category          string  `json:"category" yaml:"category"`
	CriticalityPerDay float64 `json:"criticality_per_day" yaml:"criticality_per_day"`
}

// SelectionContext carries the caller's current selection and cutoffs. It is
// owned by the presentation layer and passed in explicitly.
type SelectionContext struct {
	// SelectedRiskIDs restricts scoring to these risks. Empty means all.
	SelectedRiskIDs []string `json:"selected_risk_ids,omitempty"`
	// SelectedProcessIDs restricts prioritization to these processes. Empty means all.
	SelectedProcessIDs  []string `json:"selected_process_ids,omitempty"`
	ProcessThresholdPct float64  `json:"process_threshold_pct"`
	MinRiskScore        float64  `json:"min_risk_score"`
}

// RiskSelected reports whether id passes the risk selection filter.
func (s SelectionContext) RiskSelected(id string) bool {
	return contains(s.SelectedRiskIDs, id)
}

// ProcessSelected reports whether id passes the process selection filter.
func (s SelectionContext) ProcessSelected(id string) bool {
	return contains(s.SelectedProcessIDs, id)
}

func contains(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
