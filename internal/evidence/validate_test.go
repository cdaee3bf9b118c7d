package evidence

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validBundle() Bundle {
	b := New("WISH-001")
	b = UpdateAC(b, "AC1", ACPatch{Status: ACPass, EvidenceItems: []string{"curl output"}})
	b = AddTouchedFile(b, "internal/api/upload.go", FileModified)
	b = AddCommandRun(b, CommandRun{Command: "npm test", Result: CommandSuccess})
	b = AddE2E(b, E2EResults{Status: "passed", Passed: 3, Skipped: 1})
	return b
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Bundle)
		wantErr error
	}{
		{"valid", func(b *Bundle) {}, nil},
		{"wrong schema", func(b *Bundle) { b.Schema = 1 }, ErrSchemaVersion},
		{"future schema", func(b *Bundle) { b.Schema = 3 }, ErrSchemaVersion},
		{"empty story id", func(b *Bundle) { b.StoryID = "" }, ErrInvalid},
		{"zero version", func(b *Bundle) { b.Version = 0 }, ErrInvalid},
		{"bad ac status", func(b *Bundle) { b.ACs[0].Status = "MAYBE" }, ErrInvalid},
		{"empty ac id", func(b *Bundle) { b.ACs[0].ACID = "" }, ErrInvalid},
		{"bad file action", func(b *Bundle) { b.TouchedFiles[0].Action = "renamed" }, ErrInvalid},
		{"bad command result", func(b *Bundle) { b.Commands[0].Result = "CRASHED" }, ErrInvalid},
		{"mocked e2e", func(b *Bundle) { b.E2E.Mode = "mock" }, ErrInvalid},
		{"duplicate ac id", func(b *Bundle) {
			b.ACs = append(b.ACs, ACEvidence{ACID: "AC1", Status: ACPass})
		}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(&b)
			err := Validate(b)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	b := validBundle()
	data, err := EncodeYAML(b)
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	got, err := DecodeYAML(data)
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	if diff := cmp.Diff(b, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeYAML_SchemaGate(t *testing.T) {
	doc := []byte("schema: 1\nstory_id: WISH-001\nversion: 4\n")
	if _, err := DecodeYAML(doc); !errors.Is(err, ErrSchemaVersion) {
		t.Fatalf("err = %v, want ErrSchemaVersion", err)
	}
}
