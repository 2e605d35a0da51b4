package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrGatewayNotFound = errors.New("gateway not found")
	ErrGatewayExists   = errors.New("gateway already registered")
)

// entry holds a gateway with lifecycle metadata.
type entry struct {
	gateway   *Gateway
	createdAt time.Time
	failures  int
}

// Manager is the process-wide registry of per-account gateways. Each account
// maps to exactly one gateway; gateways run fully concurrently with each
// other and share no mutable state through the manager.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     *zap.Logger
}

// NewManager creates the registry.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		entries: make(map[string]*entry),
		log:     log.Named("gateways"),
	}
}

// Register binds a gateway to its account descriptor.
func (m *Manager) Register(g *Gateway) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := g.Account().Descriptor
	if _, ok := m.entries[key]; ok {
		return ErrGatewayExists
	}
	m.entries[key] = &entry{gateway: g, createdAt: time.Now()}
	return nil
}

// Get returns the gateway owning the account.
func (m *Manager) Get(descriptor string) (*Gateway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[descriptor]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	return e.gateway, nil
}

// Remove disconnects and drops the gateway for an account.
func (m *Manager) Remove(ctx context.Context, descriptor string) {
	m.mu.Lock()
	e, ok := m.entries[descriptor]
	delete(m.entries, descriptor)
	m.mu.Unlock()

	if ok {
		if err := e.gateway.Disconnect(ctx); err != nil {
			m.log.Warn("disconnect on remove", zap.String("account", descriptor), zap.Error(err))
		}
	}
}

// RecordFailure increments the failure counter for an account's gateway.
func (m *Manager) RecordFailure(descriptor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[descriptor]; ok {
		e.failures++
	}
}

// Stats summarizes the registry.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{Total: len(m.entries), ByState: make(map[string]int)}
	for _, e := range m.entries {
		stats.ByState[string(e.gateway.State())]++
		stats.Failures += e.failures
	}
	return stats
}

// Stop disconnects every registered gateway.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		if err := e.gateway.Disconnect(ctx); err != nil {
			m.log.Warn("disconnect on stop", zap.Error(err))
		}
	}
}

// ManagerStats summarizes registry state for the monitor API.
type ManagerStats struct {
	Total    int
	Failures int
	ByState  map[string]int
}
