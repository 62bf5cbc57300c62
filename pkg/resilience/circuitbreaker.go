// Package resilience holds the fault-tolerance helpers shared by the
// services: a circuit breaker guarding the Redis result cache, retry with
// backoff for Kafka and Postgres, and bounded-time execution for result
// saving.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling fn while the breaker rejects
// calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a CircuitBreaker. Zero fields take defaults.
type BreakerConfig struct {
	// FailureThreshold consecutive failures trip the breaker. Default 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before letting probes
	// through. Default 30s.
	Cooldown time.Duration
	// HalfOpenProbes calls may run while half-open. Default 1.
	HalfOpenProbes int
	// IsFailure decides whether an error counts against the backend. The
	// default ignores context.Canceled: a caller that went away says nothing
	// about the backend's health.
	IsFailure func(error) bool
	// Now is the clock; tests replace it.
	Now func() time.Time
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenProbes <= 0 {
		c.HalfOpenProbes = 1
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Transition is reported to the change hook after each state change.
type Transition struct {
	Name     string
	From, To State
	At       time.Time
}

// BreakerStatus is a point-in-time view of a breaker.
type BreakerStatus struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Trips               int64     `json:"trips"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
}

// CircuitBreaker counts consecutive backend failures and, past the
// threshold, rejects calls for a cooldown. After the cooldown a limited
// number of probe calls decide whether it closes again.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
	trips    int64
	onChange func(Transition)
}

func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// OnChange registers fn to be called, outside the breaker's lock, after
// every state change.
func (cb *CircuitBreaker) OnChange(fn func(Transition)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Execute runs fn unless the breaker is rejecting calls.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStatus{
		Name:                cb.name,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.failures,
		Trips:               cb.trips,
		OpenedAt:            cb.openedAt,
	}
}

// Reset closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	t, changed := cb.moveLocked(StateClosed)
	cb.failures = 0
	hook := cb.onChange
	cb.mu.Unlock()
	cb.notify(hook, t, changed)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	var (
		t       Transition
		changed bool
		err     error
	)
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.Cooldown - cb.cfg.Now().Sub(cb.openedAt)
		if wait > 0 {
			err = fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
			break
		}
		t, changed = cb.moveLocked(StateHalfOpen)
		cb.probes = 1
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenProbes {
			err = fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
			break
		}
		cb.probes++
	}
	hook := cb.onChange
	cb.mu.Unlock()
	cb.notify(hook, t, changed)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var (
		t       Transition
		changed bool
	)
	if !cb.cfg.IsFailure(err) {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			t, changed = cb.moveLocked(StateClosed)
		}
	} else {
		cb.failures++
		if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold) {
			t, changed = cb.moveLocked(StateOpen)
		}
	}
	hook := cb.onChange
	cb.mu.Unlock()
	cb.notify(hook, t, changed)
}

func (cb *CircuitBreaker) moveLocked(to State) (Transition, bool) {
	if cb.state == to {
		return Transition{}, false
	}
	t := Transition{Name: cb.name, From: cb.state, To: to, At: cb.cfg.Now()}
	cb.state = to
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = t.At
		cb.trips++
	}
	return t, true
}

func (cb *CircuitBreaker) notify(hook func(Transition), t Transition, changed bool) {
	if !changed {
		return
	}
	switch t.To {
	case StateOpen:
		cb.logger.Warn("circuit opened", "from", t.From.String(), "cooldown", cb.cfg.Cooldown)
	default:
		cb.logger.Info("circuit state changed", "from", t.From.String(), "to", t.To.String())
	}
	if hook != nil {
		hook(t)
	}
}
