package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonio-prism/prism-brain/internal/model"
)

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Weather ")
	require.True(t, ok)
	assert.Equal(t, Weather, c)

	_, ok = ParseCategory("satellite")
	assert.False(t, ok)
}

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, TrendIncreasing, ClassifyTrend(25))
	assert.Equal(t, TrendStable, ClassifyTrend(10))
	assert.Equal(t, TrendStable, ClassifyTrend(-10))
	assert.Equal(t, TrendDecreasing, ClassifyTrend(-10.5))
}

func TestContextKey(t *testing.T) {
	sc := Context{Industry: " Manufacturing", Region: "Europe", Location: "Oslo, Norway"}

	assert.Equal(t, "oslo, norway", sc.Key(Weather))
	assert.Equal(t, "europe", sc.Key(Economic))
	assert.Equal(t, "manufacturing", sc.Key(Cyber))
	assert.Equal(t, "manufacturing", sc.Key(Operational))
	assert.Equal(t, "manufacturing|europe", sc.Key(News))

	assert.Equal(t, "europe", Context{Region: "Europe"}.Key(Weather))
}

func TestContextFor(t *testing.T) {
	sc := ContextFor(model.ClientProfile{Industry: "Retail", Location: "Bergen"})
	assert.Equal(t, "Bergen", sc.Region)

	sc = ContextFor(model.ClientProfile{Industry: "Retail", Location: "Bergen", Region: "Europe"})
	assert.Equal(t, "Europe", sc.Region)
	assert.Equal(t, "Bergen", sc.Location)
}

func TestSimulate_Deterministic(t *testing.T) {
	sc := Context{Industry: "Technology", Region: "Europe", Location: "Oslo"}
	for _, c := range Categories {
		a := Simulate(c, sc)
		b := Simulate(c, sc)
		assert.Equal(t, a, b, c)
		assert.Equal(t, QualitySimulated, a.Quality)
		assert.Equal(t, "simulated:"+string(c), a.Source)
		assert.Equal(t, c, a.Category)
	}
}

func TestSimulate_IndicatorsInRange(t *testing.T) {
	for _, industry := range []string{"Manufacturing", "Finance", "Healthcare", "Food processing", ""} {
		sc := Context{Industry: industry, Region: "Asia", Location: "Tokyo"}
		for _, c := range Categories {
			set := Simulate(c, sc)
			p, ok := set.Primary()
			require.True(t, ok, c)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			for name, v := range set.Indicators {
				assert.GreaterOrEqual(t, v, 0.0, name)
				assert.LessOrEqual(t, v, 1.0, name)
			}
		}
	}
}

func TestSimulate_NewsCoversEveryDomain(t *testing.T) {
	set := Simulate(News, Context{Industry: "Energy", Region: "Europe"})
	require.Len(t, set.Domains, 4)
	for _, d := range model.Domains {
		ds, ok := set.Domain(d)
		require.True(t, ok, d)
		assert.Greater(t, ds.Incidents, 0)
		assert.Equal(t, ClassifyTrend(ds.TrendPct), ds.Trend)
	}
}

func TestSimulate_IndustryShiftsCyberBaseline(t *testing.T) {
	fin := Simulate(Cyber, Context{Industry: "Finance"})
	def := Simulate(Cyber, Context{Industry: "Agriculture"})
	f, _ := fin.Primary()
	d, _ := def.Primary()
	// Baselines are 0.7 and 0.4 with ±0.1 jitter.
	assert.Greater(t, f, d)
}

func TestIndicatorSet_IndicatorClamps(t *testing.T) {
	set := IndicatorSet{Category: Weather, Indicators: map[string]float64{IndSeverity: 1.7}}
	v, ok := set.Indicator(IndSeverity)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = set.Indicator(IndWind)
	assert.False(t, ok)
}

func TestSummarize_CategoryOrder(t *testing.T) {
	s := Signals{
		Operational: Simulate(Operational, Context{}),
		Weather:     Simulate(Weather, Context{}),
		Cyber:       Simulate(Cyber, Context{}),
	}
	got := Summarize(s)
	require.Len(t, got, 3)
	assert.Equal(t, Weather, got[0].Category)
	assert.Equal(t, Cyber, got[1].Category)
	assert.Equal(t, Operational, got[2].Category)
}
