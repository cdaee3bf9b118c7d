package evidence

import (
	"errors"
	"fmt"
)

// ErrPrecondition is returned when an operation's ordering requirement is
// violated (e.g. recording a config issue before any E2E run exists).
var ErrPrecondition = errors.New("evidence: precondition failed")

// New creates the first version of a story's evidence bundle.
func New(storyID string) Bundle {
	return Bundle{
		Schema:    SchemaVersion,
		StoryID:   storyID,
		Version:   1,
		Timestamp: timeNow(),
	}
}

// bump returns a deep copy with Version+1 and a fresh Timestamp. All
// mutating operations go through it so the version invariant has exactly
// one owner.
func bump(b Bundle) Bundle {
	out := b
	out.Version = b.Version + 1
	out.Timestamp = timeNow()
	out.ACs = append([]ACEvidence(nil), b.ACs...)
	out.TouchedFiles = append([]TouchedFile(nil), b.TouchedFiles...)
	out.Commands = append([]CommandRun(nil), b.Commands...)
	out.Endpoints = append([]EndpointExercised(nil), b.Endpoints...)
	out.NotableDecisions = append([]string(nil), b.NotableDecisions...)
	out.KnownDeviations = append([]string(nil), b.KnownDeviations...)
	if b.TokenSummary != nil {
		ts := *b.TokenSummary
		out.TokenSummary = &ts
	}
	if b.TestSummary != nil {
		ts := *b.TestSummary
		out.TestSummary = &ts
	}
	if b.E2E != nil {
		e2e := *b.E2E
		e2e.ConfigIssues = append([]string(nil), b.E2E.ConfigIssues...)
		out.E2E = &e2e
	}
	if b.Coverage != nil {
		c := *b.Coverage
		out.Coverage = &c
	}
	return out
}

// ACPatch is a partial update to one acceptance criterion. Zero-valued
// fields are left untouched; EvidenceItems non-nil replaces the list.
type ACPatch struct {
	Status        ACStatus
	EvidenceItems []string
	Reason        string
}

// UpdateAC upserts the criterion keyed by acID: update-in-place if
// present, else append. Insertion order is preserved either way.
func UpdateAC(b Bundle, acID string, patch ACPatch) Bundle {
	out := bump(b)
	for i := range out.ACs {
		if out.ACs[i].ACID == acID {
			applyPatch(&out.ACs[i], patch)
			return out
		}
	}
	entry := ACEvidence{ACID: acID, Status: ACMissing, EvidenceItems: []string{}}
	applyPatch(&entry, patch)
	out.ACs = append(out.ACs, entry)
	return out
}

func applyPatch(ac *ACEvidence, patch ACPatch) {
	if patch.Status != "" {
		ac.Status = patch.Status
	}
	if patch.EvidenceItems != nil {
		ac.EvidenceItems = append([]string(nil), patch.EvidenceItems...)
	}
	if patch.Reason != "" {
		ac.Reason = patch.Reason
	}
}

// AddTouchedFile appends a file record.
func AddTouchedFile(b Bundle, path string, action FileAction) Bundle {
	out := bump(b)
	out.TouchedFiles = append(out.TouchedFiles, TouchedFile{Path: path, Action: action})
	return out
}

// AddCommandRun appends a command record.
func AddCommandRun(b Bundle, run CommandRun) Bundle {
	out := bump(b)
	if run.Timestamp.IsZero() {
		run.Timestamp = timeNow()
	}
	out.Commands = append(out.Commands, run)
	return out
}

// AddEndpoint appends an exercised-endpoint record.
func AddEndpoint(b Bundle, ep EndpointExercised) Bundle {
	out := bump(b)
	out.Endpoints = append(out.Endpoints, ep)
	return out
}

// AddDecision appends a notable implementation decision.
func AddDecision(b Bundle, decision string) Bundle {
	out := bump(b)
	out.NotableDecisions = append(out.NotableDecisions, decision)
	return out
}

// AddDeviation appends a known deviation from the story plan.
func AddDeviation(b Bundle, deviation string) Bundle {
	out := bump(b)
	out.KnownDeviations = append(out.KnownDeviations, deviation)
	return out
}

// SetTokenSummary records the story's token spend.
func SetTokenSummary(b Bundle, ts TokenSummary) Bundle {
	out := bump(b)
	out.TokenSummary = &ts
	return out
}

// SetTestSummary records the story's test outcome.
func SetTestSummary(b Bundle, ts TestSummary) Bundle {
	out := bump(b)
	out.TestSummary = &ts
	return out
}

// SetCoverage records the story's coverage figure.
func SetCoverage(b Bundle, c Coverage) Bundle {
	out := bump(b)
	out.Coverage = &c
	return out
}

// AddE2E records the live E2E run. Mode is forced to "live" regardless of
// the input; mocked evidence is unrepresentable.
func AddE2E(b Bundle, e2e E2EResults) Bundle {
	out := bump(b)
	e2e.Mode = E2EModeLive
	e2e.ConfigIssues = append([]string(nil), e2e.ConfigIssues...)
	out.E2E = &e2e
	return out
}

// AddConfigIssue appends a config issue to the E2E record. The E2E run
// must have been recorded first; there is nothing to attach issues to
// otherwise.
func AddConfigIssue(b Bundle, issue string) (Bundle, error) {
	if b.E2E == nil {
		return b, fmt.Errorf("%w: AddConfigIssue before AddE2E", ErrPrecondition)
	}
	out := bump(b)
	out.E2E.ConfigIssues = append(out.E2E.ConfigIssues, issue)
	return out, nil
}

// AllACsPassing reports whether every criterion has status PASS.
// Vacuously true for a bundle with zero criteria.
func AllACsPassing(b Bundle) bool {
	for _, ac := range b.ACs {
		if ac.Status != ACPass {
			return false
		}
	}
	return true
}

// MissingACs returns the ids of criteria whose status is not PASS, in
// insertion order.
func MissingACs(b Bundle) []string {
	var out []string
	for _, ac := range b.ACs {
		if ac.Status != ACPass {
			out = append(out, ac.ACID)
		}
	}
	return out
}
