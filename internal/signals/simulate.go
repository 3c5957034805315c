package signals

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// industryProfile holds per-industry baselines for simulated signals.
type industryProfile struct {
	cyber       float64
	operational float64
	physical    float64
}

var industryProfiles = map[string]industryProfile{
	"manufacturing": {cyber: 0.45, operational: 0.55, physical: 0.5},
	"technology":    {cyber: 0.65, operational: 0.35, physical: 0.25},
	"finance":       {cyber: 0.7, operational: 0.3, physical: 0.2},
	"healthcare":    {cyber: 0.6, operational: 0.45, physical: 0.3},
	"retail":        {cyber: 0.5, operational: 0.45, physical: 0.3},
	"energy":        {cyber: 0.55, operational: 0.5, physical: 0.6},
	"logistics":     {cyber: 0.45, operational: 0.55, physical: 0.45},
}

var defaultProfile = industryProfile{cyber: 0.4, operational: 0.4, physical: 0.35}

func profileFor(industry string) industryProfile {
	in := norm(industry)
	if p, ok := industryProfiles[in]; ok {
		return p
	}
	for _, name := range []string{"manufacturing", "technology", "finance", "healthcare", "retail", "energy", "logistics"} {
		if strings.Contains(in, name) {
			return industryProfiles[name]
		}
	}
	return defaultProfile
}

// baseIncidents is the simulated 30-day incident count per domain.
var baseIncidents = map[model.Domain]float64{
	model.DomainPhysical:    20,
	model.DomainStructural:  15,
	model.DomainOperational: 25,
	model.DomainDigital:     35,
}

// Simulate returns a deterministic IndicatorSet for c and sc. The same inputs
// always produce the same values.
func Simulate(c Category, sc Context) IndicatorSet {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(c) + "\x00" + sc.Key(c)))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	// jitter returns base moved by up to ±spread.
	jitter := func(base, spread float64) float64 {
		return model.Clamp01(base + (rng.Float64()*2-1)*spread)
	}
	round := func(v float64) float64 { return math.Round(v*1000) / 1000 }

	prof := profileFor(sc.Industry)
	set := IndicatorSet{
		Category:   c,
		Quality:    QualitySimulated,
		Source:     "simulated:" + string(c),
		Indicators: map[string]float64{},
	}

	switch c {
	case Weather:
		sev := jitter(0.3, 0.15)
		set.Indicators[IndSeverity] = round(sev)
		set.Indicators[IndWind] = round(jitter(sev, 0.1))
		set.Indicators[IndTemperature] = round(jitter(0.3, 0.2))
		set.Indicators[IndPrecipitation] = round(jitter(0.3, 0.2))
	case Economic:
		base := 0.4
		if strings.Contains(norm(sc.Region), "europe") {
			base = 0.35
		}
		inf, unemp, contr := jitter(base, 0.15), jitter(base, 0.15), jitter(base, 0.2)
		set.Indicators[IndInflation] = round(inf)
		set.Indicators[IndUnemployment] = round(unemp)
		set.Indicators[IndContraction] = round(contr)
		set.Indicators[IndStress] = round(0.4*inf + 0.3*unemp + 0.3*contr)
	case Cyber:
		set.Indicators[IndThreatLevel] = round(jitter(prof.cyber, 0.1))
		set.Indicators[IndRansomware] = round(jitter(prof.cyber, 0.15))
		set.Indicators[IndVulnerabilities] = round(jitter(0.5, 0.2))
	case Operational:
		set.Indicators[IndDeviation] = round(jitter(prof.operational, 0.1))
		set.Indicators[IndSupplyChain] = round(jitter(prof.operational, 0.15))
		set.Indicators[IndLabor] = round(jitter(0.35, 0.15))
	case News:
		set.Domains = make(map[model.Domain]DomainSignal, len(model.Domains))
		mult := map[model.Domain]float64{
			model.DomainPhysical:    prof.physical / defaultProfile.physical,
			model.DomainStructural:  1,
			model.DomainOperational: prof.operational / defaultProfile.operational,
			model.DomainDigital:     prof.cyber / defaultProfile.cyber,
		}
		var total int
		for _, d := range model.Domains {
			n := int(math.Round(baseIncidents[d] * mult[d] * (0.7 + rng.Float64()*0.6)))
			pct := math.Round((rng.Float64()*50-25)*10) / 10
			set.Domains[d] = DomainSignal{Incidents: n, Trend: ClassifyTrend(pct), TrendPct: pct}
			total += n
		}
		set.Indicators[IndCoverage] = model.Clamp01(float64(total) / 400)
	}
	return set
}
