package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"swipeshop/internal/domain"
)

// MemoryLedger keeps the asset ledger in process. It backs the service when
// no database is configured.
type MemoryLedger struct {
	mu     sync.RWMutex
	assets []domain.Asset
	ids    map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{ids: make(map[string]struct{})}
}

func (m *MemoryLedger) Record(_ context.Context, a domain.Asset) error {
	if a.ID == "" {
		return fmt.Errorf("%w: asset id is required", domain.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[a.ID]; ok {
		return nil
	}
	m.ids[a.ID] = struct{}{}
	m.assets = append(m.assets, a)
	return nil
}

func (m *MemoryLedger) ListBySession(_ context.Context, sessionID string, kind domain.AssetKind) ([]domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Asset
	for _, a := range m.assets {
		if a.SessionID != sessionID || (kind != "" && a.Kind != kind) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryLedger) CountByKind(context.Context) (map[domain.AssetKind]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.AssetKind]int64)
	for _, a := range m.assets {
		counts[a.Kind]++
	}
	return counts, nil
}

var _ domain.AssetLedger = (*MemoryLedger)(nil)
