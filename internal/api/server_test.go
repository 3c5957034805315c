package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonio-prism/prism-brain/internal/exposure"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/pareto"
	"github.com/antonio-prism/prism-brain/internal/signals"
)

var catalog = []model.RiskEvent{
	{ID: "OPS-011", Name: "Global shipping lane closure", Domain: model.DomainOperational,
		GeographicScope: "Global", BaseProbability: 0.4, AffectedIndustries: "All industries", IsSuperRisk: true},
	{ID: "STR-003", Name: "Trade embargo", Domain: model.DomainStructural,
		GeographicScope: "Europe", BaseProbability: 0.3, AffectedIndustries: "Manufacturing"},
	{ID: "PHY-020", Name: "Volcanic ash cloud", Domain: model.DomainPhysical,
		GeographicScope: "Iceland", BaseProbability: 0.1, AffectedIndustries: "Aviation"},
}

type fakeCalculator struct {
	mu     sync.Mutex
	client model.ClientProfile
	ids    []string
}

func (f *fakeCalculator) CalculateAll(_ context.Context, risks []model.RiskEvent, client model.ClientProfile) map[string]model.ProbabilityResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = client
	f.ids = nil
	out := make(map[string]model.ProbabilityResult, len(risks))
	for _, r := range risks {
		f.ids = append(f.ids, r.ID)
		out[r.ID] = model.ProbabilityResult{RiskID: r.ID, Probability: 0.7, Provenance: model.ProvenanceLocal}
	}
	return out
}

type memAssessments struct {
	mu   sync.Mutex
	recs map[string]model.ExposureRecord
	err  error
}

func (m *memAssessments) SaveAssessment(_ context.Context, rec model.ExposureRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ClientID+"|"+rec.ProcessID+"|"+rec.RiskID] = rec
	return nil
}

func (m *memAssessments) ListAssessments(_ context.Context, clientID string) ([]model.ExposureRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExposureRecord
	for _, r := range m.recs {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

type staticSignals struct{}

func (staticSignals) FetchAll(_ context.Context, sc signals.Context, _ bool) signals.Signals {
	out := signals.Signals{}
	for _, c := range signals.Categories {
		out[c] = signals.Simulate(c, sc)
	}
	return out
}

type fakeFreshness struct{ err error }

func (f fakeFreshness) CacheFreshness(context.Context) ([]model.CacheFreshness, error) {
	return []model.CacheFreshness{{Category: "weather", Entries: 2, Expired: 1}}, f.err
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCalculator, *memAssessments) {
	t.Helper()
	calc := &fakeCalculator{}
	store := &memAssessments{recs: map[string]model.ExposureRecord{}}
	s := New(Deps{
		Catalog:      catalog,
		Calculator:   calc,
		Assessments:  store,
		Signals:      staticSignals{},
		Cache:        fakeFreshness{},
		ThresholdPct: 80,
		MinScore:     5,
		WorkingDays:  250,
	})
	srv := httptest.NewServer(s.Router(nil))
	t.Cleanup(srv.Close)
	return srv, calc, store
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["risks"])
}

func TestMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/relevance", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProbabilities(t *testing.T) {
	srv, calc, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/probabilities?industry=Retail&region=Europe&risks=STR-003,NOPE,PHY-020", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[map[string]model.ProbabilityResult](t, resp)
	assert.Len(t, got, 2)
	assert.InDelta(t, 0.7, got["PHY-020"].Probability, 1e-9)
	assert.Equal(t, []string{"STR-003", "PHY-020"}, calc.ids)
	assert.Equal(t, "Retail", calc.client.Industry)
	assert.Equal(t, "Europe", calc.client.Region)
}

func TestProbabilities_UnknownIDsIsNoData(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/probabilities?risks=NOPE", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[map[string]model.ProbabilityResult](t, resp))
}

func TestSignals(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/signals?industry=Manufacturing&location=Oslo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[[]signals.Summary](t, resp)
	require.Len(t, got, len(signals.Categories))
	assert.Equal(t, signals.Weather, got[0].Category)
	assert.Equal(t, signals.QualitySimulated, got[0].Quality)
}

func TestCache(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/cache", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]model.CacheFreshness](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Expired)
}

func TestRelevance(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/relevance", relevanceRequest{
		Client: model.ClientProfile{Industry: "Manufacturing", Location: "Oslo, Norway, Europe"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[relevanceResponse](t, resp)
	require.Len(t, got.Scores, 3)
	assert.Equal(t, "OPS-011", got.Scores[0].RiskID)
	assert.Equal(t, "STR-003", got.Scores[1].RiskID)
	assert.Equal(t, 5.0, got.MinScore, "server default applies")
	assert.Len(t, got.Selected, 2)
}

func TestRelevance_BadBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/relevance", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrioritize(t *testing.T) {
	srv, calc, _ := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/prioritize", prioritizeRequest{
		Client: model.ClientProfile{Industry: "Manufacturing", Location: "Europe", Revenue: 25_000_000},
		Processes: []model.ProcessRecord{
			{ID: "P1", Name: "Production", CriticalityPerDay: 80000},
			{ID: "P2", Name: "Payroll", CriticalityPerDay: 5000},
			{ID: "P3", Name: "Order to cash"},
		},
		ApplyDefaultCriticality: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[prioritizeResponse](t, resp)
	// P3 defaults to 25M / 250 / 3 per day; adding it to P1 passes 80%
	require.Len(t, got.Processes.Selected, 1)
	assert.Equal(t, "P1", got.Processes.Selected[0].ID)
	require.Len(t, got.Risks, 2)
	assert.Equal(t, 2, got.Combinations)
	assert.Equal(t, "HIGH", got.Risks[0].Level)
	assert.Equal(t, model.ProvenanceLocal, got.Risks[0].Provenance)
	// base 50 + super risk 20 + probability 0.7 → 15 + manufacturing/operational 10
	assert.InDelta(t, 95, got.Risks[0].PriorityScore, 1e-9)
	assert.Equal(t, []string{"OPS-011", "STR-003"}, calc.ids)
}

func TestPrioritize_UndefinedSelection(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/prioritize", prioritizeRequest{
		Processes: []model.ProcessRecord{{ID: "P1"}, {ID: "P2"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "undefined")
}

func TestPrioritize_RevenueDoesNotFillCriticalityImplicitly(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body := prioritizeRequest{
		Client: model.ClientProfile{Revenue: 1_000_000},
		Processes: []model.ProcessRecord{
			{ID: "P1"}, {ID: "P2"}, {ID: "P3"}, {ID: "P4"}, {ID: "P5"},
		},
	}
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/prioritize", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "undefined")

	body.ApplyDefaultCriticality = true
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/prioritize", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[prioritizeResponse](t, resp)
	assert.Len(t, got.Processes.Ranked, 5)
	assert.NotEmpty(t, got.Processes.Selected)
}

func TestAssessmentsAndExposure(t *testing.T) {
	srv, _, store := newTestServer(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/v1/assessments", model.ExposureRecord{
		ClientID: "c-1", ProcessID: "P1", ProcessName: "Production", RiskID: "STR-003",
		Criticality: 100000, Vulnerability: 0.5, Resilience: 0.3, Downtime: 5, Probability: 0.4,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[model.ExposureRecord](t, resp)
	assert.InDelta(t, 70000, saved.Exposure, 1e-6)
	assert.Equal(t, "Trade embargo", saved.RiskName, "risk name filled from catalog")
	assert.Equal(t, model.DomainStructural, saved.Domain)

	// upsert replaces the same key
	resp = do(t, http.MethodPut, srv.URL+"/api/v1/assessments", model.ExposureRecord{
		ClientID: "c-1", ProcessID: "P1", RiskID: "STR-003", ProcessName: "Production",
		Criticality: 100000, Vulnerability: 1, Resilience: 0, Downtime: 1, Probability: 0.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, store.recs, 1)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/clients/c-1/exposure", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decode[exposure.Summary](t, resp)
	assert.InDelta(t, 50000, sum.Total, 1e-6)
	assert.InDelta(t, 50000, sum.ByProcess["Production"], 1e-6)
	assert.InDelta(t, 50000, sum.ByDomain[model.DomainStructural], 1e-6)
}

func TestAssessments_RequiresKeys(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, http.MethodPut, srv.URL+"/api/v1/assessments", model.ExposureRecord{ClientID: "c-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssessments_StoreError(t *testing.T) {
	s := New(Deps{Catalog: catalog, Assessments: &memAssessments{err: errors.New("disk full")}})
	srv := httptest.NewServer(s.Router([]string{"http://dashboard.local"}))
	defer srv.Close()

	resp := do(t, http.MethodPut, srv.URL+"/api/v1/assessments", model.ExposureRecord{ClientID: "c", ProcessID: "p", RiskID: "r"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/clients/c/exposure", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUnconfiguredDependencies(t *testing.T) {
	srv := httptest.NewServer(New(Deps{}).Router(nil))
	defer srv.Close()

	for _, path := range []string{"/api/v1/probabilities", "/api/v1/signals", "/api/v1/cache", "/api/v1/clients/c/exposure"} {
		resp := do(t, http.MethodGet, srv.URL+path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestFillCriticality(t *testing.T) {
	procs := []model.ProcessRecord{{ID: "a", CriticalityPerDay: 10}, {ID: "b"}}
	assert.Equal(t, 1, fillCriticality(procs, 500_000, 250))
	assert.InDelta(t, pareto.DefaultCriticality(500_000, 250, 2), procs[1].CriticalityPerDay, 1e-9)
	assert.Zero(t, fillCriticality(procs, 0, 250))
}
