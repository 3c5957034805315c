package probability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/config"
	"github.com/antonio-prism/prism-brain/internal/metrics"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/resilience"
)

// ProbabilitiesPath is the remote endpoint path, relative to the base URL.
const ProbabilitiesPath = "/api/v1/probabilities"

// RemoteSource reads pre-computed probabilities from a backend. It makes one
// attempt per request and never retries; failures fall through to the next
// tier.
type RemoteSource struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	breaker *resilience.Breaker
	weights model.Weights
	now     func() time.Time
}

// WithClient replaces the HTTP client.
func (r *RemoteSource) WithClient(c *http.Client) *RemoteSource {
	r.client = c
	return r
}

// WithTimeout replaces the per-request budget.
func (r *RemoteSource) WithTimeout(d time.Duration) *RemoteSource {
	r.timeout = d
	return r
}

// NewRemoteSource returns a source for cfg.URL. An empty URL yields a source
// that always reports ErrNoData.
func NewRemoteSource(cfg config.RemoteConfig, weights model.Weights) *RemoteSource {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteSource{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		breaker: resilience.NewBreaker("remote", resilience.FromRemoteConfig(cfg)),
		weights: weights,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Breaker exposes the remote breaker for status reporting.
func (r *RemoteSource) Breaker() *resilience.Breaker { return r.breaker }

func (r *RemoteSource) Provenance() model.Provenance { return model.ProvenanceRemote }

func (r *RemoteSource) Probabilities(ctx context.Context, risks []model.RiskEvent, client model.ClientProfile) (map[string]model.ProbabilityResult, error) {
	if r.baseURL == "" || len(risks) == 0 {
		return nil, ErrNoData
	}

	ids := make([]string, len(risks))
	for i, risk := range risks {
		ids[i] = risk.ID
	}
	q := url.Values{}
	q.Set("industry", client.Industry)
	q.Set("region", client.Region)
	q.Set("risks", strings.Join(ids, ","))
	rawURL := r.baseURL + ProbabilitiesPath + "?" + q.Encode()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	payload, err := resilience.DoVal(ctx, r.breaker, func(ctx context.Context) (map[string]json.RawMessage, error) {
		return r.get(ctx, rawURL)
	})
	metrics.RemoteLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, ErrNoData
	}

	now := r.now()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make(map[string]model.ProbabilityResult, len(payload))
	for id, raw := range payload {
		if _, ok := wanted[id]; !ok || absent(raw) {
			continue
		}
		pr, err := decodeRemote(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "probability: remote value for %s", id)
		}
		if pr.CalculatedAt.IsZero() {
			pr.CalculatedAt = now
		}
		if pr.Weights.Sum() == 0 {
			pr.Weights = r.weights
		}
		out[id] = pr
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *RemoteSource) get(ctx context.Context, rawURL string) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "probability: create remote request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "probability: remote request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := resilience.CheckStatus("remote", resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "probability: read remote response")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "probability: decode remote response")
	}
	return payload, nil
}

// absent reports whether a per-risk value carries no data.
func absent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeRemote accepts either a bare number or a ProbabilityResult object.
// Values are used as given apart from clamping to valid ranges.
func decodeRemote(raw json.RawMessage) (model.ProbabilityResult, error) {
	var pr model.ProbabilityResult

	var p float64
	if err := json.Unmarshal(raw, &p); err == nil {
		pr.Probability = model.Clamp01(p)
		return pr, nil
	}

	if err := json.Unmarshal(raw, &pr); err != nil {
		return pr, err
	}
	pr.Probability = model.Clamp01(pr.Probability)
	pr.Confidence = model.Clamp01(pr.Confidence)
	if pr.DataSourcesUsed < 0 {
		pr.DataSourcesUsed = 0
	}
	pr.Factors = model.Factors{
		HistoricalFrequency: model.Clamp01(pr.Factors.HistoricalFrequency),
		TrendDirection:      model.Clamp01(pr.Factors.TrendDirection),
		CurrentConditions:   model.Clamp01(pr.Factors.CurrentConditions),
		ExposureFactor:      model.Clamp01(pr.Factors.ExposureFactor),
	}
	return pr, nil
}
