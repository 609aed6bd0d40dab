package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"TargetSentinel/internal/model"
)

// MemoryStore keeps signals in memory. Used by tests and the backtest
// harness, which replays reconstructed historical windows offline.
type MemoryStore struct {
	mu        sync.RWMutex
	byCompany map[string][]model.Signal
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byCompany: make(map[string][]model.Signal)}
}

func (m *MemoryStore) Append(_ context.Context, sig model.Signal) (model.Signal, error) {
	if err := validate(sig); err != nil {
		return model.Signal{}, err
	}
	sig.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.byCompany[sig.CompanyID]
	// Insert keeping timestamp order so Query stays a range scan.
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Timestamp.After(sig.Timestamp)
	})
	list = append(list, model.Signal{})
	copy(list[i+1:], list[i:])
	list[i] = sig
	m.byCompany[sig.CompanyID] = list
	return sig, nil
}

func (m *MemoryStore) Query(_ context.Context, companyID string, asOf time.Time, window time.Duration) ([]model.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from := asOf.Add(-window)
	var out []model.Signal
	for _, sig := range m.byCompany[companyID] {
		if sig.Timestamp.Before(from) || sig.Timestamp.After(asOf) {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

func (m *MemoryStore) Companies(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.byCompany))
	for id := range m.byCompany {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }
