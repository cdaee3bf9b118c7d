// Package store persists evidence bundle history, gap action logs, and
// metrics reports. Domain and CLI use only the Store interface; the
// implementation is SQLite or in-memory.
package store

import (
	"errors"

	"storyflow/internal/evidence"
	"storyflow/internal/gaps"
	"storyflow/internal/metrics"
)

// DefaultDBPath is the default relative path for the SQLite DB
// (per-workspace). Open() creates the parent dir.
const DefaultDBPath = ".storyflow/storyflow.db"

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrVersionConflict is returned by SaveEvidence when the bundle's
// version is not ahead of the stored history. The caller re-reads the
// latest bundle, re-applies its operations, and saves again.
var ErrVersionConflict = errors.New("store: evidence version conflict")

// Store is the persistence facade.
type Store interface {
	// Evidence history is append-only: each save adds one version, and a
	// version at or behind the stored head is a conflict.
	SaveEvidence(b evidence.Bundle) error
	LatestEvidence(storyID string) (evidence.Bundle, error)
	EvidenceHistory(storyID string) ([]evidence.Bundle, error)

	// Gap action logs are append-only per gap.
	AppendGapAction(storyID, gapID string, a gaps.Action) error
	GapHistory(storyID, gapID string) ([]gaps.Action, error)

	// Reports archive one row per analytics run.
	SaveReport(r metrics.Report) error
	LatestReport(storyID string) (metrics.Report, error)

	Close() error
}
