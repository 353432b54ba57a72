// Package circuitbreaker guards calls to flaky upstream services.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

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

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// MaxProbes is the number of calls let through while half-open.
	MaxProbes int
	// IsFailure decides which errors count against the breaker. Nil counts
	// every non-nil error.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
}

const (
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
	defaultMaxProbes   = 1
)

func (c *Config) sanitize(logger *logrus.Logger) {
	if c.Name == "" {
		c.Name = "unnamed"
	}

	warn := func(field string, invalid, fallback interface{}) {
		logger.WithFields(logrus.Fields{
			"circuit_breaker": c.Name,
			"field":           field,
			"invalid_value":   invalid,
			"default_value":   fallback,
		}).Warn("Invalid circuit breaker setting, using default")
	}

	if c.MaxFailures <= 0 {
		warn("max_failures", c.MaxFailures, defaultMaxFailures)
		c.MaxFailures = defaultMaxFailures
	}
	if c.OpenTimeout <= 0 {
		warn("open_timeout", c.OpenTimeout, defaultOpenTimeout)
		c.OpenTimeout = defaultOpenTimeout
	}
	if c.MaxProbes <= 0 {
		warn("max_probes", c.MaxProbes, defaultMaxProbes)
		c.MaxProbes = defaultMaxProbes
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
}

// Counts is a point-in-time view of a breaker.
type Counts struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalRequests       int64     `json:"total_requests"`
	TotalFailures       int64     `json:"total_failures"`
	TotalSuccesses      int64     `json:"total_successes"`
	Rejected            int64     `json:"rejected"`
	StateChanges        int64     `json:"state_changes"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

type CircuitBreaker struct {
	config Config
	logger *logrus.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	openedAt time.Time
	counts   Counts
}

func New(config Config, logger *logrus.Logger) *CircuitBreaker {
	config.sanitize(logger)
	return &CircuitBreaker{
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker is open. Errors for which IsFailure
// returns false are passed through without affecting the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A cancelled caller says nothing about the upstream.
	if err != nil && ctx.Err() != nil {
		if cb.state == StateHalfOpen {
			cb.probes--
		}
		return err
	}

	if err != nil && cb.config.IsFailure(err) {
		cb.counts.TotalFailures++
		cb.onFailure()
		return err
	}

	cb.counts.TotalSuccesses++
	cb.onSuccess()
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.OpenTimeout {
			cb.counts.Rejected++
			return ErrOpen
		}
		cb.setState(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.probes >= cb.config.MaxProbes {
			cb.counts.Rejected++
			return ErrOpen
		}
		cb.probes++
	}

	cb.counts.TotalRequests++
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.counts.LastFailure = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
		cb.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.probes = 0
	cb.counts.StateChanges++
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if to == StateClosed {
		cb.failures = 0
	}

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.config.Name,
		"from_state":      from.String(),
		"to_state":        to.String(),
	}).Info("Circuit breaker state changed")

	if cb.config.OnStateChange != nil {
		go cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.WithFields(logrus.Fields{
				"circuit_breaker": cb.config.Name,
				"panic":           r,
			}).Error("Circuit breaker state change callback panicked")
		}
	}()
	cb.config.OnStateChange(cb.config.Name, from, to)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	counts := cb.counts
	counts.Name = cb.config.Name
	counts.State = cb.state.String()
	counts.ConsecutiveFailures = cb.failures
	return counts
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.probes = 0
}

func (cb *CircuitBreaker) String() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fmt.Sprintf("CircuitBreaker(name=%s, state=%s, failures=%d/%d)",
		cb.config.Name, cb.state, cb.failures, cb.config.MaxFailures)
}
