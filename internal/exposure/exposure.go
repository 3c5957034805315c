// Package exposure computes the monetary exposure of process-risk pairs and
// rolls it up by domain, process and risk.
package exposure

import (
	"sort"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Exposure is criticality × vulnerability × (1 − resilience) × downtime ×
// probability, with each input clamped to its valid range first.
func Exposure(criticality, vulnerability, resilience, downtime, probability float64) float64 {
	return model.ClampNonNegative(criticality) *
		model.Clamp01(vulnerability) *
		(1 - model.Clamp01(resilience)) *
		model.ClampNonNegative(downtime) *
		model.Clamp01(probability)
}

// Assess returns r with its inputs clamped and Exposure filled in.
func Assess(r model.ExposureRecord) model.ExposureRecord {
	r = r.Normalize()
	r.Exposure = Exposure(r.Criticality, r.Vulnerability, r.Resilience, r.Downtime, r.Probability)
	return r
}

// Summary is the aggregated exposure of a record set.
type Summary struct {
	Total     float64                  `json:"total"`
	ByDomain  map[model.Domain]float64 `json:"by_domain"`
	ByProcess map[string]float64       `json:"by_process"`
	ByRisk    map[string]float64       `json:"by_risk"`
	Records   []model.ExposureRecord   `json:"records"`
}

// Aggregate recomputes every record's exposure and sums it into each bucket.
// The input slice is not modified.
func Aggregate(records []model.ExposureRecord) Summary {
	s := Summary{
		ByDomain:  make(map[model.Domain]float64),
		ByProcess: make(map[string]float64),
		ByRisk:    make(map[string]float64),
		Records:   make([]model.ExposureRecord, len(records)),
	}
	for i, rec := range records {
		r := Assess(rec)
		s.Records[i] = r
		s.Total += r.Exposure
		s.ByDomain[r.Domain] += r.Exposure
		s.ByProcess[label(r.ProcessName, r.ProcessID)] += r.Exposure
		s.ByRisk[label(r.RiskName, r.RiskID)] += r.Exposure
	}
	return s
}

// label keys a bucket by name, or by id when the name was never filled in.
func label(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// Bucket is one named subtotal.
type Bucket struct {
	Name     string  `json:"name"`
	Exposure float64 `json:"exposure"`
	Share    float64 `json:"share"`
}

// Ranked orders a bucket map by exposure, largest first, with names breaking
// ties. Share is the bucket's fraction of total, or zero when total is not
// positive.
func Ranked[K ~string](buckets map[K]float64, total float64) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for k, v := range buckets {
		b := Bucket{Name: string(k), Exposure: v}
		if total > 0 {
			b.Share = v / total
		}
		out = append(out, b)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Exposure != out[b].Exposure {
			return out[a].Exposure > out[b].Exposure
		}
		return out[a].Name < out[b].Name
	})
	return out
}
