package circuitbreaker

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager hands out one breaker per upstream name.
type Manager struct {
	breakers map[string]*CircuitBreaker
	mu       sync.RWMutex
	logger   *logrus.Logger
}

func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// GetOrCreate returns the breaker registered under name, creating it from
// config on first use. Later configs for the same name are ignored.
func (m *Manager) GetOrCreate(name string, config Config) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}

	config.Name = name
	breaker := New(config, m.logger)
	m.breakers[name] = breaker

	m.logger.WithFields(logrus.Fields{
		"circuit_breaker": name,
		"max_failures":    breaker.config.MaxFailures,
		"open_timeout":    breaker.config.OpenTimeout.String(),
		"max_probes":      breaker.config.MaxProbes,
	}).Info("Circuit breaker created")

	return breaker
}

// Snapshot returns the counts of every breaker sorted by name.
func (m *Manager) Snapshot() []Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]Counts, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		snapshot = append(snapshot, breaker.Counts())
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
	return snapshot
}

// Reset closes the named breaker. It reports whether the breaker exists.
func (m *Manager) Reset(name string) bool {
	m.mu.RLock()
	breaker, ok := m.breakers[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	breaker.Reset()
	m.logger.WithField("circuit_breaker", name).Info("Circuit breaker reset")
	return true
}
