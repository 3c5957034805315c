package pareto

import (
	"github.com/antonio-prism/prism-brain/internal/model"
)

// ProcessSelection is the outcome of a criticality-based process selection.
type ProcessSelection struct {
	Ranked   []Ranked[model.ProcessRecord] `json:"ranked"`
	Selected []model.ProcessRecord         `json:"selected"`
	// CoveredPct is the cumulative share of the last selected process.
	CoveredPct float64 `json:"covered_pct"`
}

// SelectProcesses applies sel's process filter and threshold to processes,
// ranked by daily criticality.
func SelectProcesses(processes []model.ProcessRecord, sel model.SelectionContext) (ProcessSelection, error) {
	var candidates []model.ProcessRecord
	for _, p := range processes {
		if sel.ProcessSelected(p.ID) {
			candidates = append(candidates, p)
		}
	}

	ranked, err := RankByCumulativeThreshold(candidates, criticality, sel.ProcessThresholdPct)
	if err != nil {
		return ProcessSelection{Ranked: ranked}, err
	}

	out := ProcessSelection{Ranked: ranked}
	for _, r := range ranked {
		if r.Selected {
			out.Selected = append(out.Selected, r.Item)
			out.CoveredPct = r.CumulativePct
		}
	}
	return out, nil
}

func criticality(p model.ProcessRecord) float64 { return p.CriticalityPerDay }
