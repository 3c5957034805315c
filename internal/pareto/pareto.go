// Package pareto selects the items that carry most of a set's total weight.
package pareto

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// ErrUndefinedSelection is returned when the items carry no weight at all,
// so no cumulative share can be computed. Callers must handle it explicitly.
var ErrUndefinedSelection = eris.New("pareto: total weight is zero, selection undefined")

// Ranked is one item in descending weight order with its running share of
// the total.
type Ranked[T any] struct {
	Item          T       `json:"item"`
	Weight        float64 `json:"weight"`
	CumulativePct float64 `json:"cumulative_pct"`
	Selected      bool    `json:"selected"`
}

// Rank sorts items by weight, heaviest first, and computes each item's
// cumulative percentage. Equal weights keep their input order. Negative
// weights count as zero.
func Rank[T any](items []T, weight func(T) float64) ([]Ranked[T], error) {
	ranked := make([]Ranked[T], len(items))
	for i, it := range items {
		ranked[i] = Ranked[T]{Item: it, Weight: model.ClampNonNegative(weight(it))}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Weight > ranked[b].Weight })

	// Summed in sorted order so the last cumulative value is exactly 100.
	var total float64
	for _, r := range ranked {
		total += r.Weight
	}
	if total == 0 {
		return ranked, ErrUndefinedSelection
	}

	var running float64
	for i := range ranked {
		running += ranked[i].Weight
		ranked[i].CumulativePct = running / total * 100
	}
	return ranked, nil
}

// RankByCumulativeThreshold ranks items and marks those whose own
// cumulative percentage is at or below thresholdPct. The heaviest item is
// always marked.
func RankByCumulativeThreshold[T any](items []T, weight func(T) float64, thresholdPct float64) ([]Ranked[T], error) {
	if len(items) == 0 {
		return nil, nil
	}
	ranked, err := Rank(items, weight)
	if err != nil {
		return ranked, err
	}
	for i := range ranked {
		ranked[i].Selected = i == 0 || ranked[i].CumulativePct <= thresholdPct
	}
	return ranked, nil
}

// SelectByCumulativeThreshold returns the heaviest items whose cumulative
// share of the total weight stays within thresholdPct, heaviest first. The
// result is never empty when items carry weight. An empty input selects
// nothing; a zero total is ErrUndefinedSelection.
func SelectByCumulativeThreshold[T any](items []T, weight func(T) float64, thresholdPct float64) ([]T, error) {
	ranked, err := RankByCumulativeThreshold(items, weight, thresholdPct)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, r := range ranked {
		if r.Selected {
			out = append(out, r.Item)
		}
	}
	return out, nil
}

// SelectByMinimumScore keeps the items scoring at least minScore, in input
// order.
func SelectByMinimumScore[T any](items []T, score func(T) float64, minScore float64) []T {
	var out []T
	for _, it := range items {
		if score(it) >= minScore {
			out = append(out, it)
		}
	}
	return out
}

// DefaultWorkingDays is the number of revenue days in a year.
const DefaultWorkingDays = 250

// DefaultCriticality spreads annual revenue evenly across working days and
// processes. It is zero when revenue or the process count is not positive.
func DefaultCriticality(revenue float64, workingDays, processCount int) float64 {
	if revenue <= 0 || processCount <= 0 {
		return 0
	}
	if workingDays <= 0 {
		workingDays = DefaultWorkingDays
	}
	return revenue / float64(workingDays) / float64(processCount)
}

// Combinations is the number of process-risk pairs to assess.
func Combinations(processes, risks int) int {
	if processes <= 0 || risks <= 0 {
		return 0
	}
	return processes * risks
}

// Pair is one process-risk assessment slot.
type Pair struct {
	Process model.ProcessRecord `json:"process"`
	Risk    model.RiskEvent     `json:"risk"`
}

// Pairs lists every process-risk combination, process-major.
func Pairs(processes []model.ProcessRecord, risks []model.RiskEvent) []Pair {
	out := make([]Pair, 0, Combinations(len(processes), len(risks)))
	for _, p := range processes {
		for _, r := range risks {
			out = append(out, Pair{Process: p, Risk: r})
		}
	}
	return out
}
