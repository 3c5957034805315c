package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonio-prism/prism-brain/internal/config"
)

var errBoom = errors.New("boom")

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

func newTestBreaker(threshold int, reset time.Duration) (*Breaker, *manualClock) {
	clk := &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("remote", BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset}).WithClock(clk.now)
	return b, clk
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	}
	assert.Equal(t, Open, b.State())
	assert.Equal(t, 3, b.Failures())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	require.NoError(t, b.Do(ctx, ok))
	_ = b.Do(ctx, fail)

	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 1, b.Failures())
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	assert.Equal(t, Open, b.State())

	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenAdmitsOneCallAtATime(t *testing.T) {
	b, clk := newTestBreaker(1, time.Minute)
	ctx := context.Background()
	require.ErrorIs(t, b.Do(ctx, fail), errBoom)
	clk.t = clk.t.Add(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, b.Do(ctx, ok), ErrCircuitOpen, "second caller rejected while the first is in flight")
	assert.Equal(t, HalfOpen, b.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Closed, b.State())
	assert.NoError(t, b.Do(ctx, ok))
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	clk.t = clk.t.Add(2 * time.Minute)

	assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.Equal(t, Open, b.State())
	assert.ErrorIs(t, b.Do(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_ShouldTrip(t *testing.T) {
	b := NewBreaker("svc", BreakerConfig{FailureThreshold: 1, ShouldTrip: IsTransient})
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return &StatusError{Service: "svc", StatusCode: 404} })
	assert.Equal(t, Closed, b.State())

	_ = b.Do(ctx, func(context.Context) error { return &StatusError{Service: "svc", StatusCode: 503} })
	assert.Equal(t, Open, b.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	b := NewBreaker("remote", BreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			seen = append(seen, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	_ = b.Do(context.Background(), fail)
	b.Reset()

	assert.Equal(t, []string{"remote:closed->open", "remote:open->closed"}, seen)
}

func TestDoVal(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	v, err := DoVal(ctx, b, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = DoVal(ctx, b, func(context.Context) (int, error) { return 0, errBoom })
	require.Error(t, err)

	v, err = DoVal(ctx, b, func(context.Context) (int, error) { return 9, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, v)
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{})
	assert.Equal(t, 3, b.cfg.FailureThreshold)
	assert.Equal(t, time.Minute, b.cfg.ResetTimeout)
	assert.Equal(t, "x", b.Name())
	assert.Equal(t, "closed", b.State().String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestFromRemoteConfig(t *testing.T) {
	cfg := FromRemoteConfig(config.RemoteConfig{FailureThreshold: 5, ResetTimeoutSecs: 30})
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.ResetTimeout)
}

func TestFromFetchConfig(t *testing.T) {
	cfg := FromFetchConfig(config.FetchConfig{FailureThreshold: 4, ResetTimeoutSecs: 300})
	assert.Equal(t, 4, cfg.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.ResetTimeout)
	require.NotNil(t, cfg.ShouldTrip)
	assert.True(t, cfg.ShouldTrip(context.DeadlineExceeded))
}

func TestBreakers_GetAndStates(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1})
	a := r.Get("newsapi")
	assert.Same(t, a, r.Get("newsapi"))

	_ = a.Do(context.Background(), fail)
	r.Get("worldbank")

	states := r.States()
	assert.Equal(t, Open, states["newsapi"])
	assert.Equal(t, Closed, states["worldbank"])
}
