package signals

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/antonio-prism/prism-brain/internal/resilience"
)

// maxBody caps how much of a live response is read.
const maxBody = 4 << 20

// AdaptiveLimiter wraps a rate.Limiter that halves its rate on 429 and
// recovers by 20% per success, never above the initial rate.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at perSec events per second.
func NewAdaptiveLimiter(perSec float64, burst int) *AdaptiveLimiter {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 1
	}
	r := rate.Limit(perSec)
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(r, burst),
		initialRate: r,
		minRate:     r / 4,
		currentRate: r,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20% up to the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := min(a.currentRate*1.2, a.initialRate)
	a.currentRate = next
	a.limiter.SetLimit(next)
}

// OnRateLimit halves the rate, down to a quarter of the initial rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := max(a.currentRate*0.5, a.minRate)
	a.currentRate = next
	a.limiter.SetLimit(next)
	zap.L().Warn("signals: rate limited, reducing request rate",
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// jsonClient performs rate-limited GETs with a hard per-request timeout. It
// never retries: a failed live call degrades to simulated data upstream.
type jsonClient struct {
	http    *http.Client
	limiter *AdaptiveLimiter
}

func newJSONClient(timeout time.Duration, perSec float64) *jsonClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &jsonClient{
		http:    &http.Client{Timeout: timeout},
		limiter: NewAdaptiveLimiter(perSec, 1),
	}
}

func (c *jsonClient) getJSON(ctx context.Context, service, rawURL string, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "%s: rate limiter wait", service)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: create request", service)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "prism-brain/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s: request", service)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.OnRateLimit()
	}
	if err := resilience.CheckStatus(service, resp); err != nil {
		return err
	}
	c.limiter.OnSuccess()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(dest); err != nil {
		return eris.Wrapf(err, "%s: decode response", service)
	}
	return nil
}
