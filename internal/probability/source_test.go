package probability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonio-prism/prism-brain/internal/config"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/resilience"
	"github.com/antonio-prism/prism-brain/internal/signals"
)

type fakeFetcher struct {
	sig   signals.Signals
	calls int
	last  signals.Context
}

func (f *fakeFetcher) FetchAll(_ context.Context, sc signals.Context, _ bool) signals.Signals {
	f.calls++
	f.last = sc
	return f.sig
}

type stubSource struct {
	prov model.Provenance
	fn   func(risks []model.RiskEvent) (map[string]model.ProbabilityResult, error)
	seen [][]string
}

func (s *stubSource) Provenance() model.Provenance { return s.prov }

func (s *stubSource) Probabilities(_ context.Context, risks []model.RiskEvent, _ model.ClientProfile) (map[string]model.ProbabilityResult, error) {
	ids := make([]string, len(risks))
	for i, r := range risks {
		ids[i] = r.ID
	}
	s.seen = append(s.seen, ids)
	return s.fn(risks)
}

var threeRisks = []model.RiskEvent{
	{ID: "R1", Domain: model.DomainDigital, BaseProbability: 0.1},
	{ID: "R2", Domain: model.DomainPhysical, BaseProbability: 0.2},
	{ID: "R3", Domain: model.DomainStructural, BaseProbability: 0.3},
}

func remoteCfg(url string) config.RemoteConfig {
	return config.RemoteConfig{URL: url, TimeoutSecs: 1, FailureThreshold: 3, ResetTimeoutSecs: 60}
}

func newLocal() (*LocalSource, *fakeFetcher) {
	f := &fakeFetcher{sig: liveSignals()}
	return NewLocalSource(testEngine(), f), f
}

func TestRemoteSource_NumbersAndObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ProbabilitiesPath, r.URL.Path)
		assert.Equal(t, "Manufacturing", r.URL.Query().Get("industry"))
		assert.Equal(t, "Europe", r.URL.Query().Get("region"))
		assert.Equal(t, "R1,R2,R3", r.URL.Query().Get("risks"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"R1": 0.9,
			"R2": {"probability": 1.4, "confidence": 0.7, "data_sources_used": 3,
			       "factors": {"historical_frequency": 0.5, "trend_direction": -1}},
			"R9": 0.5
		}`))
	}))
	defer srv.Close()

	got, err := NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()).
		Probabilities(context.Background(), threeRisks, acme)
	require.NoError(t, err)
	require.Len(t, got, 2, "unrequested ids are dropped")

	r1 := got["R1"]
	assert.InDelta(t, 0.9, r1.Probability, 1e-9)
	assert.Equal(t, model.Factors{}, r1.Factors)
	assert.Zero(t, r1.Confidence)
	assert.Zero(t, r1.DataSourcesUsed)
	assert.Equal(t, model.DefaultWeights(), r1.Weights)
	assert.False(t, r1.CalculatedAt.IsZero())

	r2 := got["R2"]
	assert.Equal(t, 1.0, r2.Probability)
	assert.InDelta(t, 0.7, r2.Confidence, 1e-9)
	assert.Equal(t, 3, r2.DataSourcesUsed)
	assert.InDelta(t, 0.5, r2.Factors.HistoricalFrequency, 1e-9)
	assert.Zero(t, r2.Factors.TrendDirection)
}

func TestRemoteSource_NoData(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty object", http.StatusOK, `{}`},
		{"null", http.StatusOK, `null`},
		{"empty body", http.StatusOK, ``},
		{"not found", http.StatusNotFound, ``},
		{"only unknown ids", http.StatusOK, `{"ZZ": 0.4}`},
		{"null values", http.StatusOK, `{"R1": null, "R2": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()).
				Probabilities(context.Background(), threeRisks, acme)
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestRemoteSource_Disabled(t *testing.T) {
	_, err := NewRemoteSource(config.RemoteConfig{}, model.DefaultWeights()).
		Probabilities(context.Background(), threeRisks, acme)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRemoteSource_ServerErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()).
		Probabilities(context.Background(), threeRisks, acme)
	require.Error(t, err)

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestRemoteSource_BreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights())
	for range 3 {
		_, err := rs.Probabilities(context.Background(), threeRisks, acme)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.Open, rs.Breaker().State())

	_, err := rs.Probabilities(context.Background(), threeRisks, acme)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestRemoteSource_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"R1": "high"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()).
		Probabilities(context.Background(), threeRisks, acme)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestLocalSource_CoversEveryRisk(t *testing.T) {
	local, f := newLocal()
	got, err := local.Probabilities(context.Background(), threeRisks, acme)
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, 1, f.calls, "signals are fetched once per request")
	assert.Equal(t, signals.Context{Industry: "Manufacturing", Region: "Europe", Location: "Oslo"}, f.last)
	assert.Equal(t, model.ProvenanceLocal, local.Provenance())
}

func TestStaticSource(t *testing.T) {
	s := NewStaticSource(model.DefaultWeights())
	got, err := s.Probabilities(context.Background(), []model.RiskEvent{
		{ID: "A", BaseProbability: 0.35},
		{ID: "B", BaseProbability: -2},
	}, acme)
	require.NoError(t, err)

	assert.InDelta(t, 0.35, got["A"].Probability, 1e-9)
	assert.Zero(t, got["A"].Confidence)
	assert.Zero(t, got["A"].DataSourcesUsed)
	assert.Equal(t, model.Factors{}, got["A"].Factors)
	assert.Zero(t, got["B"].Probability)
}

func TestResolver_RemoteFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"R1": 0.9, "R2": 0.8, "R3": 0.7}`))
	}))
	defer srv.Close()

	local, f := newLocal()
	res := NewResolver(NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()), local, NewStaticSource(model.DefaultWeights()))

	got := res.CalculateAll(context.Background(), threeRisks, acme)
	require.Len(t, got, 3)
	for id, pr := range got {
		assert.Equal(t, model.ProvenanceRemote, pr.Provenance, id)
		assert.Equal(t, id, pr.RiskID)
	}
	assert.Zero(t, f.calls, "local tier is not consulted when remote covers everything")
}

func TestResolver_PartialRemoteFilledLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"R2": 0.8}`))
	}))
	defer srv.Close()

	local, _ := newLocal()
	res := NewResolver(NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()), local, NewStaticSource(model.DefaultWeights()))

	got := res.CalculateAll(context.Background(), threeRisks, acme)
	require.Len(t, got, 3)
	assert.Equal(t, model.ProvenanceLocal, got["R1"].Provenance)
	assert.Equal(t, model.ProvenanceRemote, got["R2"].Provenance)
	assert.Equal(t, model.ProvenanceLocal, got["R3"].Provenance)
}

func TestResolver_NullRemoteValueFilledLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"R1": null, "R2": 0.8}`))
	}))
	defer srv.Close()

	local, _ := newLocal()
	res := NewResolver(NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()), local, NewStaticSource(model.DefaultWeights()))

	got := res.CalculateAll(context.Background(), threeRisks, acme)
	require.Len(t, got, 3)
	assert.Equal(t, model.ProvenanceLocal, got["R1"].Provenance)
	assert.Equal(t, model.ProvenanceRemote, got["R2"].Provenance)
	assert.InDelta(t, 0.8, got["R2"].Probability, 1e-9)
}

func TestResolver_RemoteUnavailableFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			timeout: time.Second,
		},
		{
			name:    "empty payload",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{}`)) },
			timeout: time.Second,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				_, _ = w.Write([]byte(`{"R1": 0.9}`))
			},
			timeout: 50 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			remote := NewRemoteSource(remoteCfg(srv.URL), model.DefaultWeights()).WithTimeout(tt.timeout)
			local, _ := newLocal()
			res := NewResolver(remote, local, NewStaticSource(model.DefaultWeights()))

			got := res.CalculateAll(context.Background(), threeRisks, acme)
			require.Len(t, got, 3)

			want := testEngine().Calculate(threeRisks[0], acme, liveSignals())
			assert.Equal(t, model.ProvenanceLocal, got["R1"].Provenance)
			assert.InDelta(t, want.Probability, got["R1"].Probability, 1e-9, "only provenance differs from a local-only run")
		})
	}
}

func TestResolver_StaticLastResort(t *testing.T) {
	failing := &stubSource{prov: model.ProvenanceLocal, fn: func([]model.RiskEvent) (map[string]model.ProbabilityResult, error) {
		return nil, eris.New("engine unavailable")
	}}
	res := NewResolver(failing, NewStaticSource(model.DefaultWeights()))

	got := res.CalculateAll(context.Background(), threeRisks, acme)
	require.Len(t, got, 3)
	assert.Equal(t, model.ProvenanceStatic, got["R3"].Provenance)
	assert.InDelta(t, 0.3, got["R3"].Probability, 1e-9)
}

func TestResolver_OnlyMissingRisksReachNextTier(t *testing.T) {
	first := &stubSource{prov: model.ProvenanceRemote, fn: func([]model.RiskEvent) (map[string]model.ProbabilityResult, error) {
		return map[string]model.ProbabilityResult{"R1": {Probability: 0.9}}, nil
	}}
	second := &stubSource{prov: model.ProvenanceLocal, fn: func(risks []model.RiskEvent) (map[string]model.ProbabilityResult, error) {
		out := make(map[string]model.ProbabilityResult)
		for _, r := range risks {
			out[r.ID] = model.ProbabilityResult{Probability: 0.4}
		}
		return out, nil
	}}
	res := NewResolver(first, second)

	got := res.CalculateAll(context.Background(), threeRisks, acme)
	assert.Equal(t, [][]string{{"R2", "R3"}}, second.seen)
	assert.Equal(t, model.ProvenanceRemote, got["R1"].Provenance)
	assert.Equal(t, model.ProvenanceLocal, got["R3"].Provenance)
	assert.Equal(t, []model.Provenance{model.ProvenanceRemote, model.ProvenanceLocal}, res.Sources())
}

func TestResolver_EmptyRisks(t *testing.T) {
	local, f := newLocal()
	got := NewResolver(local).CalculateAll(context.Background(), nil, acme)
	assert.Empty(t, got)
	assert.Zero(t, f.calls)
}

func TestNew_TierOrder(t *testing.T) {
	cfg := &config.Config{Probability: config.ProbabilityConfig{Weights: model.DefaultWeights()}}
	assert.Equal(t, []model.Provenance{model.ProvenanceLocal, model.ProvenanceStatic}, New(cfg, &fakeFetcher{}).Sources())

	cfg.Remote = remoteCfg("http://prism-backend:8080")
	assert.Equal(t,
		[]model.Provenance{model.ProvenanceRemote, model.ProvenanceLocal, model.ProvenanceStatic},
		New(cfg, &fakeFetcher{}).Sources())
}
