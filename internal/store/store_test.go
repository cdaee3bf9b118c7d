package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"storyflow/internal/evidence"
	"storyflow/internal/gaps"
	"storyflow/internal/metrics"
	"storyflow/internal/turns"
)

// eachStore runs the test body against both implementations.
func eachStore(t *testing.T, body func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "storyflow.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer s.Close()
		body(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		body(t, NewMemStore())
	})
}

func TestEvidenceRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		b := evidence.UpdateAC(evidence.New("WISH-001"), "AC1", evidence.ACPatch{Status: evidence.ACPass})

		if err := s.SaveEvidence(b); err != nil {
			t.Fatalf("SaveEvidence: %v", err)
		}
		got, err := s.LatestEvidence("WISH-001")
		if err != nil {
			t.Fatalf("LatestEvidence: %v", err)
		}
		if got.Version != b.Version || len(got.ACs) != 1 || got.ACs[0].Status != evidence.ACPass {
			t.Errorf("round trip mismatch: %+v", got)
		}
	})
}

func TestEvidenceVersionConflict(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		b := evidence.New("WISH-001")
		if err := s.SaveEvidence(b); err != nil {
			t.Fatalf("SaveEvidence: %v", err)
		}

		// Same version again is a conflict; the history never rewinds.
		if err := s.SaveEvidence(b); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("err = %v, want version conflict", err)
		}

		next := evidence.AddDecision(b, "retried after conflict")
		if err := s.SaveEvidence(next); err != nil {
			t.Fatalf("SaveEvidence(next): %v", err)
		}

		history, err := s.EvidenceHistory("WISH-001")
		if err != nil {
			t.Fatalf("EvidenceHistory: %v", err)
		}
		var versions []int
		for _, h := range history {
			versions = append(versions, h.Version)
		}
		if diff := cmp.Diff([]int{1, 2}, versions); diff != "" {
			t.Errorf("history versions mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestEvidenceRejectsInvalid(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		b := evidence.New("") // story_id missing
		if err := s.SaveEvidence(b); !errors.Is(err, evidence.ErrInvalid) {
			t.Errorf("err = %v, want validation failure", err)
		}
	})
}

func TestLatestEvidenceNotFound(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		if _, err := s.LatestEvidence("WISH-404"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	})
}

func TestGapActionLog(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	eachStore(t, func(t *testing.T, s Store) {
		actions := []gaps.Action{
			{Type: gaps.ActionCreated, Timestamp: base},
			{Type: gaps.ActionAcknowledged, Timestamp: base.Add(time.Hour)},
			{Type: gaps.ActionResolved, Timestamp: base.Add(26 * time.Hour)},
		}
		for _, a := range actions {
			if err := s.AppendGapAction("WISH-001", "G1", a); err != nil {
				t.Fatalf("AppendGapAction: %v", err)
			}
		}

		history, err := s.GapHistory("WISH-001", "G1")
		if err != nil {
			t.Fatalf("GapHistory: %v", err)
		}
		if diff := cmp.Diff(actions, history); diff != "" {
			t.Errorf("gap history mismatch (-want +got):\n%s", diff)
		}

		other, err := s.GapHistory("WISH-001", "G2")
		if err != nil {
			t.Fatalf("GapHistory(G2): %v", err)
		}
		if len(other) != 0 {
			t.Errorf("G2 history = %v, want empty", other)
		}
	})
}

func TestReportArchive(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		in := metrics.Input{StoryID: "WISH-001", Events: []turns.Event{
			{StoryID: "WISH-001", Type: turns.TypeClarification, Phase: turns.PhaseImplementation,
				Actor: "user", Target: "assistant"},
		}}
		first := metrics.Aggregate(context.Background(), in, metrics.DefaultCollectors()...)
		second := metrics.Aggregate(context.Background(), in, metrics.DefaultCollectors()...)

		if err := s.SaveReport(first); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
		if err := s.SaveReport(second); err != nil {
			t.Fatalf("SaveReport(second): %v", err)
		}

		got, err := s.LatestReport("WISH-001")
		if err != nil {
			t.Fatalf("LatestReport: %v", err)
		}
		if got.Summary != second.Summary || got.StoryID != "WISH-001" {
			t.Errorf("latest report mismatch: %q", got.Summary)
		}

		if _, err := s.LatestReport("WISH-404"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	})
}
