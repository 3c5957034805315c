// Package resilience guards calls to external services. A Breaker stops
// calling a service that keeps failing so callers can take their fallback
// path immediately instead of waiting out a timeout on every request.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/config"
)

// State is the state of a Breaker.
type State int

const (
	// Closed lets calls through.
	Closed State = iota
	// Open rejects calls until the reset timeout has passed.
	Open
	// HalfOpen lets a single trial call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected by an open breaker.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// BreakerConfig controls Breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default 3.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open. Default 60s.
	ResetTimeout time.Duration
	// ShouldTrip decides whether an error counts as a failure. Nil counts
	// every non-nil error.
	ShouldTrip func(err error) bool
	// OnStateChange is called with the breaker name on every transition.
	OnStateChange func(name string, from, to State)
}

// FromRemoteConfig builds a BreakerConfig from the remote backend settings.
func FromRemoteConfig(rc config.RemoteConfig) BreakerConfig {
	return BreakerConfig{
		FailureThreshold: rc.FailureThreshold,
		ResetTimeout:     time.Duration(rc.ResetTimeoutSecs) * time.Second,
	}
}

// FromFetchConfig builds a BreakerConfig for live signal clients. Only
// transient errors count toward opening.
func FromFetchConfig(fc config.FetchConfig) BreakerConfig {
	return BreakerConfig{
		FailureThreshold: fc.FailureThreshold,
		ResetTimeout:     time.Duration(fc.ResetTimeoutSecs) * time.Second,
		ShouldTrip:       IsTransient,
	}
}

// Breaker is a consecutive-failure circuit breaker for one service.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	// trial is set while the single half-open call is in flight.
	trial bool
	now   func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// WithClock replaces the breaker clock.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Name returns the guarded service name.
func (b *Breaker) Name() string { return b.name }

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// State reports the current state. An open breaker whose reset timeout has
// passed reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return HalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trial = false
	b.transition(Closed)
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(HalfOpen)
		b.trial = true
	case HalfOpen:
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false

	trip := err != nil
	if trip && b.cfg.ShouldTrip != nil {
		trip = b.cfg.ShouldTrip(err)
	}

	if !trip {
		b.failures = 0
		b.transition(Closed)
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == HalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.transition(Open)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Breakers hands out one Breaker per service name.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewBreakers creates an empty registry whose breakers share cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{breakers: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for service, creating it on first use.
func (r *Breakers) Get(service string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[service]; ok {
		return b
	}
	b = NewBreaker(service, r.cfg)
	r.breakers[service] = b
	return b
}

// States returns a snapshot of every breaker state by service name.
func (r *Breakers) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
