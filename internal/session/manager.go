package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"swipeshop/internal/domain"
	"swipeshop/internal/workflow"
)

const DefaultTTL = 2 * time.Hour

// Manager owns the live sessions keyed by ULID.
type Manager struct {
	deps *Deps
	ttl  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps *Deps, ttl time.Duration) (*Manager, error) {
	if deps == nil || deps.Catalog == nil {
		return nil, errors.New("session: catalog is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("session: generator is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{deps: deps, ttl: ttl, sessions: make(map[string]*Session)}, nil
}

// Create opens a session on the named flow. A non-empty purposeID starts the
// project right away.
func (m *Manager) Create(flowName, purposeID string) (*Session, error) {
	flow, err := workflow.FlowByName(strings.TrimSpace(flowName), m.deps.Catalog.Steps)
	if err != nil {
		return nil, err
	}
	s := New(strings.ToLower(domain.NewULID().String()), flow, m.deps)
	if purposeID = strings.TrimSpace(purposeID); purposeID != "" {
		if _, err := s.StartProject(purposeID); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.deps.logger().Info().Str("session_id", s.id).Str("flow", flow.Name).Msg("session: created")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.deps.logger().Info().Int("removed", removed).Int("live", len(m.sessions)).Msg("session: swept idle sessions")
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.deps.now())
		}
	}
}
