package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyflow/internal/evidence"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v\n%s", args, err, buf.String())
	}
	return buf.String()
}

func TestEvidenceValidateCommand(t *testing.T) {
	b := evidence.UpdateAC(evidence.New("WISH-001"), "AC1", evidence.ACPatch{Status: evidence.ACPass})
	data, err := evidence.EncodeYAML(b)
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	out := execute(t, "evidence", "validate", path)
	if !strings.Contains(out, "OK: WISH-001 version 2, 1 ACs") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCommand_DryRun(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.yaml")
	resultPath := filepath.Join(dir, "result.yaml")

	input := `story_id: WISH-001
hygiene:
  gaps:
    - id: G1
      source: qa_review
      category: mvp_important
      related_acs: [AC1]
`
	result := `acs:
  - ac_id: AC1
    status: PASS
    evidence_items: [screenshot]
`
	if err := os.WriteFile(inputPath, []byte(input), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(resultPath, []byte(result), 0644); err != nil {
		t.Fatal(err)
	}

	out := execute(t, "run", "--input", inputPath, "--result", resultPath,
		"--dry-run", "--format", "yaml")
	if !strings.Contains(out, "story_id: WISH-001") {
		t.Errorf("output missing story id:\n%s", out)
	}
	if !strings.Contains(out, "success: true") {
		t.Errorf("output missing success flag:\n%s", out)
	}
}
