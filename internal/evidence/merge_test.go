package evidence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMerge_UpsertByKey(t *testing.T) {
	old := New("WISH-001")
	old = UpdateAC(old, "AC1", ACPatch{Status: ACMissing})
	old = UpdateAC(old, "AC2", ACPatch{Status: ACPass})

	update := UpdateAC(old, "AC1", ACPatch{Status: ACPass, EvidenceItems: []string{"screenshot"}})
	update = AddTouchedFile(update, "web/upload.tsx", FileModified)

	merged := Merge(old, update)

	if len(merged.ACs) != 2 {
		t.Fatalf("len(ACs) = %d, want 2", len(merged.ACs))
	}
	if merged.ACs[0].Status != ACPass {
		t.Errorf("AC1 status = %s, want PASS", merged.ACs[0].Status)
	}
	if merged.Version != update.Version {
		t.Errorf("version = %d, want %d (never rewinds)", merged.Version, update.Version)
	}
}

func TestMerge_KeepsNewerOptionalSections(t *testing.T) {
	old := AddE2E(New("WISH-001"), E2EResults{Status: "failed", Failed: 2})
	update := SetTestSummary(New("WISH-001"), TestSummary{Passed: 12})

	merged := Merge(old, update)
	if merged.E2E == nil || merged.E2E.Failed != 2 {
		t.Error("merge dropped the old E2E section")
	}
	if merged.TestSummary == nil || merged.TestSummary.Passed != 12 {
		t.Error("merge missed the new test summary")
	}
	// merge is non-destructive toward its inputs
	if old.TestSummary != nil {
		t.Error("Merge mutated old bundle")
	}
}

func TestDelta_NoDuplicationOnMerge(t *testing.T) {
	base := AddDecision(AddTouchedFile(New("WISH-001"), "a.go", FileCreated), "kept the old widget")

	delta := AddTouchedFile(Delta(base), "b.go", FileModified)
	merged := Merge(base, delta)

	if len(merged.TouchedFiles) != 2 {
		t.Errorf("touched files = %d, want 2 (no duplicates)", len(merged.TouchedFiles))
	}
	if len(merged.NotableDecisions) != 1 {
		t.Errorf("decisions = %v, want the base entry once", merged.NotableDecisions)
	}
	if merged.Version <= base.Version {
		t.Errorf("version = %d, want past base %d", merged.Version, base.Version)
	}
}

func TestMerge_ListsConcatenate(t *testing.T) {
	old := AddTouchedFile(New("WISH-001"), "a.go", FileCreated)
	update := AddTouchedFile(New("WISH-001"), "b.go", FileModified)

	merged := Merge(old, update)
	var paths []string
	for _, f := range merged.TouchedFiles {
		paths = append(paths, f.Path)
	}
	if diff := cmp.Diff([]string{"a.go", "b.go"}, paths); diff != "" {
		t.Errorf("touched files mismatch (-want +got):\n%s", diff)
	}
}
