// Package history persists score snapshots, assigns watchlist tiers, and
// emits deduplicated alerts.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"TargetSentinel/internal/model"
)

// Store is the append-only score history plus alert and watchlist state.
type Store interface {
	// SaveSnapshot appends a snapshot. Returns model.ErrStale when the
	// snapshot is not newer than the latest persisted one for the
	// company, so superseded computations are safe to drop.
	SaveSnapshot(ctx context.Context, snap model.CompanyScoreSnapshot) error

	// LatestSnapshot returns the newest snapshot, or nil when untracked.
	LatestSnapshot(ctx context.Context, companyID string) (*model.CompanyScoreSnapshot, error)

	// SnapshotsSince returns snapshots with EvaluatedAt >= since, ascending.
	SnapshotsSince(ctx context.Context, companyID string, since time.Time) ([]model.CompanyScoreSnapshot, error)

	// LatestAll returns the latest snapshot of every tracked company.
	LatestAll(ctx context.Context) ([]model.CompanyScoreSnapshot, error)

	// SaveAlert persists an alert.
	SaveAlert(ctx context.Context, alert model.Alert) error

	// StrongestAlertSince returns the highest-severity alert for the
	// company created at or after since, or nil.
	StrongestAlertSince(ctx context.Context, companyID string, since time.Time) (*model.Alert, error)

	// WatchlistEntry returns the entry for a company, or nil.
	WatchlistEntry(ctx context.Context, companyID string) (*model.WatchlistEntry, error)

	// SaveWatchlistEntry upserts a watchlist entry.
	SaveWatchlistEntry(ctx context.Context, entry model.WatchlistEntry) error

	// Watchlist returns all entries ordered by company id.
	Watchlist(ctx context.Context) ([]model.WatchlistEntry, error)

	Close() error
}

// MemoryStore is the in-memory Store used by tests and backtests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]model.CompanyScoreSnapshot // ascending by EvaluatedAt
	alerts    map[string][]model.Alert
	watchlist map[string]model.WatchlistEntry
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]model.CompanyScoreSnapshot),
		alerts:    make(map[string][]model.Alert),
		watchlist: make(map[string]model.WatchlistEntry),
	}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap model.CompanyScoreSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.snapshots[snap.CompanyID]
	if n := len(list); n > 0 && !snap.EvaluatedAt.After(list[n-1].EvaluatedAt) {
		return model.ErrStale
	}
	m.snapshots[snap.CompanyID] = append(list, snap)
	return nil
}

func (m *MemoryStore) LatestSnapshot(_ context.Context, companyID string) (*model.CompanyScoreSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.snapshots[companyID]
	if len(list) == 0 {
		return nil, nil
	}
	snap := list[len(list)-1]
	return &snap, nil
}

func (m *MemoryStore) SnapshotsSince(_ context.Context, companyID string, since time.Time) ([]model.CompanyScoreSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CompanyScoreSnapshot
	for _, snap := range m.snapshots[companyID] {
		if !snap.EvaluatedAt.Before(since) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *MemoryStore) LatestAll(_ context.Context) ([]model.CompanyScoreSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.CompanyScoreSnapshot, 0, len(ids))
	for _, id := range ids {
		list := m.snapshots[id]
		if len(list) > 0 {
			out = append(out, list[len(list)-1])
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveAlert(_ context.Context, alert model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alert.CompanyID] = append(m.alerts[alert.CompanyID], alert)
	return nil
}

func (m *MemoryStore) StrongestAlertSince(_ context.Context, companyID string, since time.Time) (*model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var strongest *model.Alert
	for _, a := range m.alerts[companyID] {
		if a.CreatedAt.Before(since) {
			continue
		}
		if strongest == nil || a.Severity > strongest.Severity {
			cp := a
			strongest = &cp
		}
	}
	return strongest, nil
}

func (m *MemoryStore) WatchlistEntry(_ context.Context, companyID string) (*model.WatchlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.watchlist[companyID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryStore) SaveWatchlistEntry(_ context.Context, entry model.WatchlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchlist[entry.CompanyID] = entry
	return nil
}

func (m *MemoryStore) Watchlist(_ context.Context) ([]model.WatchlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.watchlist))
	for id := range m.watchlist {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.WatchlistEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.watchlist[id])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
