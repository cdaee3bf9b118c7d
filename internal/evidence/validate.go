package evidence

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaVersion rejects bundles whose schema literal is not current.
	ErrSchemaVersion = errors.New("evidence: unsupported schema version")

	// ErrInvalid rejects structurally malformed bundles before any
	// mutation or persistence is applied.
	ErrInvalid = errors.New("evidence: invalid bundle")
)

// Validate checks a bundle at the boundary: schema-version gate, enum
// constraints, and the live-only E2E invariant. A bundle that fails here
// is rejected whole; nothing is partially applied.
func Validate(b Bundle) error {
	if b.Schema != SchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, b.Schema, SchemaVersion)
	}
	if b.StoryID == "" {
		return fmt.Errorf("%w: empty story_id", ErrInvalid)
	}
	if b.Version < 1 {
		return fmt.Errorf("%w: version %d", ErrInvalid, b.Version)
	}

	seen := make(map[string]bool, len(b.ACs))
	for _, ac := range b.ACs {
		if ac.ACID == "" {
			return fmt.Errorf("%w: acceptance criterion with empty ac_id", ErrInvalid)
		}
		if seen[ac.ACID] {
			return fmt.Errorf("%w: duplicate ac_id %q", ErrInvalid, ac.ACID)
		}
		seen[ac.ACID] = true
		switch ac.Status {
		case ACPass, ACMissing, ACPartial:
		default:
			return fmt.Errorf("%w: ac %q has status %q", ErrInvalid, ac.ACID, ac.Status)
		}
	}

	for _, f := range b.TouchedFiles {
		switch f.Action {
		case FileCreated, FileModified, FileDeleted:
		default:
			return fmt.Errorf("%w: file %q has action %q", ErrInvalid, f.Path, f.Action)
		}
	}

	for _, c := range b.Commands {
		switch c.Result {
		case CommandSuccess, CommandFail, CommandSkipped:
		default:
			return fmt.Errorf("%w: command %q has result %q", ErrInvalid, c.Command, c.Result)
		}
	}

	if b.E2E != nil && b.E2E.Mode != E2EModeLive {
		return fmt.Errorf("%w: e2e_tests.mode %q, only %q is representable", ErrInvalid, b.E2E.Mode, E2EModeLive)
	}

	return nil
}
