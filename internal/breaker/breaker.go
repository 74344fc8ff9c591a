// Package breaker implements a three-state circuit breaker guarding calls
// to the datastore.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
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

// ErrOpen is returned by Call when the breaker is open or a half-open probe
// is already in flight.
var ErrOpen = errors.New("circuit breaker is open")

// ErrNotFound, when a call's error satisfies errors.Is(err, ErrNotFound),
// is excluded from failure accounting per the "row not found" carve-out.
var ErrNotFound = errors.New("not found")

const (
	windowSize          = 20
	errorRatioThreshold = 0.5
	consecutiveThreshold = 5
	minCooldown         = 1 * time.Second
	maxCooldown         = 60 * time.Second
)

// Config controls notification hooks; thresholds and cooldowns are fixed constants.
type Config struct {
	OnStateChange func(from, to State)
}

// CircuitBreaker guards a dependency with closed/open/half-open semantics.
// All public methods are safe for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	state    State
	outcomes [windowSize]bool // true = error
	count    int
	cursor   int
	consecutiveErrors int

	cooldown      time.Duration
	openedAt      time.Time
	halfOpenInFlight bool

	onStateChange func(from, to State)
}

// New returns a CircuitBreaker starting in the closed state.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		state:         Closed,
		cooldown:      minCooldown,
		onStateChange: cfg.OnStateChange,
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// currentStateLocked advances open->half-open when the cooldown has
// elapsed. Caller must hold b.mu.
func (b *CircuitBreaker) currentStateLocked() State {
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		b.transitionLocked(HalfOpen)
	}
	return b.state
}

// Call executes fn if the breaker permits it, recording the outcome.
func (b *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case Closed:
		return true
	case Open:
		return false
	case HalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	isFailure := err != nil && !errors.Is(err, ErrNotFound)

	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight = false
		if isFailure {
			b.cooldown *= 2
			if b.cooldown > maxCooldown {
				b.cooldown = maxCooldown
			}
			b.transitionLocked(Open)
		} else {
			b.cooldown = minCooldown
			b.consecutiveErrors = 0
			b.count = 0
			b.cursor = 0
			b.transitionLocked(Closed)
		}
		return
	case Open:
		return
	}

	// Closed: update the rolling window.
	b.outcomes[b.cursor] = isFailure
	b.cursor = (b.cursor + 1) % windowSize
	if b.count < windowSize {
		b.count++
	}

	if isFailure {
		b.consecutiveErrors++
	} else {
		b.consecutiveErrors = 0
	}

	if b.consecutiveErrors >= consecutiveThreshold ||
		(b.count == windowSize && b.errorRatioLocked() > errorRatioThreshold) {
		b.transitionLocked(Open)
	}
}

func (b *CircuitBreaker) errorRatioLocked() float64 {
	if b.count == 0 {
		return 0
	}
	errs := 0
	for i := 0; i < b.count; i++ {
		if b.outcomes[i] {
			errs++
		}
	}
	return float64(errs) / float64(b.count)
}

func (b *CircuitBreaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == Open {
		b.openedAt = time.Now()
		b.halfOpenInFlight = false
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
