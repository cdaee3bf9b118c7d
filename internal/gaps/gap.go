// Package gaps models specification gaps flagged by reviewer passes
// (PM/UX/QA/attack) during planning, and computes pure yield and
// acceptance analytics over their history. Nothing here performs I/O;
// callers feed gap lists in and get value objects back.
package gaps

import (
	"strings"
	"time"
)

// Category ranks a gap's importance against the MVP line.
type Category string

const (
	CategoryBlocking  Category = "mvp_blocking"
	CategoryImportant Category = "mvp_important"
	CategoryFuture    Category = "future"
	CategoryDeferred  Category = "deferred"
)

// ActionType is one lifecycle event in a gap's history.
type ActionType string

const (
	ActionCreated      ActionType = "created"
	ActionDeferred     ActionType = "deferred"
	ActionAcknowledged ActionType = "acknowledged"
	ActionResolved     ActionType = "resolved"
	ActionMerged       ActionType = "merged"
)

// Action is one append-only history entry. A resolved gap's history is
// immutable from then on.
type Action struct {
	Type      ActionType `json:"action" yaml:"action"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
}

// Gap is a detected specification gap with its review lifecycle.
type Gap struct {
	ID           string   `json:"id" yaml:"id"`
	Source       string   `json:"source" yaml:"source"`
	Category     Category `json:"category" yaml:"category"`
	Acknowledged bool     `json:"acknowledged" yaml:"acknowledged"`
	Resolved     bool     `json:"resolved" yaml:"resolved"`
	RelatedACs   []string `json:"related_acs,omitempty" yaml:"related_acs,omitempty"`
	Suggestion   string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	MergedFrom   []string `json:"merged_from,omitempty" yaml:"merged_from,omitempty"`
	History      []Action `json:"history" yaml:"history"`
}

// SourceGroup buckets gap sources by reviewer role prefix.
type SourceGroup string

const (
	SourcePM      SourceGroup = "pm"
	SourceUX      SourceGroup = "ux"
	SourceQA      SourceGroup = "qa"
	SourceAttack  SourceGroup = "attack"
	SourceUnknown SourceGroup = "unknown"
)

// SourceGroupOf classifies a raw source string (pm_review, ux_pass,
// qa_sweep, attack_red_team, ...) by prefix.
func SourceGroupOf(source string) SourceGroup {
	switch {
	case strings.HasPrefix(source, "pm"):
		return SourcePM
	case strings.HasPrefix(source, "ux"):
		return SourceUX
	case strings.HasPrefix(source, "qa"):
		return SourceQA
	case strings.HasPrefix(source, "attack"):
		return SourceAttack
	default:
		return SourceUnknown
	}
}

// Accepted reports whether the gap was ultimately accepted: acknowledged
// or resolved.
func (g Gap) Accepted() bool { return g.Acknowledged || g.Resolved }

// Rejected reports whether the gap was deferred and never accepted.
func (g Gap) Rejected() bool {
	if g.Accepted() {
		return false
	}
	for _, a := range g.History {
		if a.Type == ActionDeferred {
			return true
		}
	}
	return false
}

// HasEvidence reports whether the gap is substantiated: it references
// acceptance criteria, carries a non-trivial suggestion, or was merged
// from other gaps.
func (g Gap) HasEvidence() bool {
	return len(g.RelatedACs) > 0 || len(g.Suggestion) > 10 || len(g.MergedFrom) > 0
}

// historyTime finds the timestamp of the first history entry of the given
// type. Second return is false when the entry is absent.
func (g Gap) historyTime(typ ActionType) (time.Time, bool) {
	for _, a := range g.History {
		if a.Type == typ {
			return a.Timestamp, true
		}
	}
	return time.Time{}, false
}

// ResolutionTime returns the created-to-resolved delta for a resolved gap.
// Second return is false when either endpoint is missing.
func (g Gap) ResolutionTime() (time.Duration, bool) {
	if !g.Resolved {
		return 0, false
	}
	created, ok := g.historyTime(ActionCreated)
	if !ok {
		return 0, false
	}
	resolved, ok := g.historyTime(ActionResolved)
	if !ok {
		return 0, false
	}
	return resolved.Sub(created), true
}
