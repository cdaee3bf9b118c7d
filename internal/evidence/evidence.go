// Package evidence is the versioned ledger of what was done for a story:
// acceptance-criteria status, touched files, commands run, endpoints
// exercised, E2E results, and config issues. Bundles are value objects;
// every mutating operation returns a new bundle with the version bumped,
// never an in-place edit. Persistence is a collaborator concern.
package evidence

import "time"

// SchemaVersion is the current bundle schema literal. Validation rejects
// any other value outright; this is a compatibility gate, not a warning.
const SchemaVersion = 2

// ACStatus is the verification state of one acceptance criterion.
type ACStatus string

const (
	ACPass    ACStatus = "PASS"
	ACMissing ACStatus = "MISSING"
	ACPartial ACStatus = "PARTIAL"
)

// FileAction classifies how an implementation touched a file.
type FileAction string

const (
	FileCreated  FileAction = "created"
	FileModified FileAction = "modified"
	FileDeleted  FileAction = "deleted"
)

// CommandResult is the outcome of one command run during implementation.
type CommandResult string

const (
	CommandSuccess CommandResult = "SUCCESS"
	CommandFail    CommandResult = "FAIL"
	CommandSkipped CommandResult = "SKIPPED"
)

// E2EModeLive is the only representable E2E mode. Mocked E2E evidence is
// not a thing this ledger can record.
const E2EModeLive = "live"

// ACEvidence records the status of one acceptance criterion, keyed by
// ACID with upsert semantics.
type ACEvidence struct {
	ACID          string   `json:"ac_id" yaml:"ac_id"`
	Status        ACStatus `json:"status" yaml:"status"`
	EvidenceItems []string `json:"evidence_items" yaml:"evidence_items"`
	Reason        string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// TouchedFile records one file the implementation created, modified, or deleted.
type TouchedFile struct {
	Path   string     `json:"path" yaml:"path"`
	Action FileAction `json:"action" yaml:"action"`
}

// CommandRun records one command executed during implementation.
type CommandRun struct {
	Command   string        `json:"command" yaml:"command"`
	Result    CommandResult `json:"result" yaml:"result"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// EndpointExercised records one endpoint hit during verification.
type EndpointExercised struct {
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
	Notes  string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// TokenSummary is the LLM token spend attributed to the story.
type TokenSummary struct {
	Prompt     int `json:"prompt" yaml:"prompt"`
	Completion int `json:"completion" yaml:"completion"`
	Total      int `json:"total" yaml:"total"`
}

// TestSummary is the unit/integration test outcome for the story.
type TestSummary struct {
	Passed  int `json:"passed" yaml:"passed"`
	Failed  int `json:"failed" yaml:"failed"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// E2EResults records the live end-to-end run. Mode is always "live".
type E2EResults struct {
	Status       string   `json:"status" yaml:"status"`
	Mode         string   `json:"mode" yaml:"mode"`
	Passed       int      `json:"passed" yaml:"passed"`
	Failed       int      `json:"failed" yaml:"failed"`
	Skipped      int      `json:"skipped" yaml:"skipped"`
	ConfigIssues []string `json:"config_issues,omitempty" yaml:"config_issues,omitempty"`
}

// Coverage is an optional statement-coverage figure.
type Coverage struct {
	Statements float64 `json:"statements" yaml:"statements"`
}

// Bundle is the evidence record for one story. Version increments by
// exactly 1 on every mutating operation and Timestamp refreshes to the
// operation time.
type Bundle struct {
	Schema           int                 `json:"schema" yaml:"schema"`
	StoryID          string              `json:"story_id" yaml:"story_id"`
	Version          int                 `json:"version" yaml:"version"`
	Timestamp        time.Time           `json:"timestamp" yaml:"timestamp"`
	ACs              []ACEvidence        `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	TouchedFiles     []TouchedFile       `json:"touched_files" yaml:"touched_files"`
	Commands         []CommandRun        `json:"commands" yaml:"commands"`
	Endpoints        []EndpointExercised `json:"endpoints" yaml:"endpoints"`
	NotableDecisions []string            `json:"notable_decisions" yaml:"notable_decisions"`
	KnownDeviations  []string            `json:"known_deviations" yaml:"known_deviations"`
	TokenSummary     *TokenSummary       `json:"token_summary,omitempty" yaml:"token_summary,omitempty"`
	TestSummary      *TestSummary        `json:"test_summary,omitempty" yaml:"test_summary,omitempty"`
	E2E              *E2EResults         `json:"e2e_tests,omitempty" yaml:"e2e_tests,omitempty"`
	Coverage         *Coverage           `json:"coverage,omitempty" yaml:"coverage,omitempty"`
}

// timeNow is swapped in tests to pin timestamps.
var timeNow = func() time.Time { return time.Now().UTC() }
