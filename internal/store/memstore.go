package store

import (
	"fmt"
	"sync"
	"time"

	"storyflow/internal/evidence"
	"storyflow/internal/gaps"
	"storyflow/internal/metrics"
)

// MemStore is an in-memory Store for tests and dry runs. Safe for
// concurrent use.
type MemStore struct {
	mu      sync.Mutex
	bundles map[string][]evidence.Bundle
	gapLogs map[string][]gaps.Action // keyed by story_id+"/"+gap_id
	reports map[string][]metrics.Report
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		bundles: make(map[string][]evidence.Bundle),
		gapLogs: make(map[string][]gaps.Action),
		reports: make(map[string][]metrics.Report),
	}
}

func (m *MemStore) SaveEvidence(b evidence.Bundle) error {
	if err := evidence.Validate(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.bundles[b.StoryID]
	if n := len(history); n > 0 && b.Version <= history[n-1].Version {
		return fmt.Errorf("%w: version %d, head %d", ErrVersionConflict, b.Version, history[n-1].Version)
	}
	m.bundles[b.StoryID] = append(history, b)
	return nil
}

func (m *MemStore) LatestEvidence(storyID string) (evidence.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.bundles[storyID]
	if len(history) == 0 {
		return evidence.Bundle{}, fmt.Errorf("%w: evidence for %s", ErrNotFound, storyID)
	}
	return history[len(history)-1], nil
}

func (m *MemStore) EvidenceHistory(storyID string) ([]evidence.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]evidence.Bundle(nil), m.bundles[storyID]...), nil
}

func (m *MemStore) AppendGapAction(storyID, gapID string, a gaps.Action) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := storyID + "/" + gapID
	m.gapLogs[key] = append(m.gapLogs[key], a)
	return nil
}

func (m *MemStore) GapHistory(storyID, gapID string) ([]gaps.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gaps.Action(nil), m.gapLogs[storyID+"/"+gapID]...), nil
}

func (m *MemStore) SaveReport(r metrics.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.StoryID] = append(m.reports[r.StoryID], r)
	return nil
}

func (m *MemStore) LatestReport(storyID string) (metrics.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.reports[storyID]
	if len(history) == 0 {
		return metrics.Report{}, fmt.Errorf("%w: report for %s", ErrNotFound, storyID)
	}
	return history[len(history)-1], nil
}

func (m *MemStore) Close() error { return nil }
