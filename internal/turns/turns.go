// Package turns counts post-commitment stakeholder interactions. These
// metrics exist for system learning, not performance evaluation:
// pre-commitment planning discussion is excluded by design and must never
// leak into the counts.
package turns

import (
	"strings"
	"time"
)

// Phase tags where in the story workflow an event happened.
type Phase string

const (
	PhasePlanning       Phase = "planning"
	PhaseImplementation Phase = "implementation"
	PhaseVerification   Phase = "verification"
	PhaseComplete       Phase = "complete"
)

// EventType classifies a workflow interaction.
type EventType string

const (
	TypeClarification EventType = "clarification"
	TypeScopeChange   EventType = "scope_change"
	TypeCommitment    EventType = "commitment"
)

// Event is one timestamped workflow interaction.
type Event struct {
	ID        string    `json:"id" yaml:"id"`
	StoryID   string    `json:"story_id" yaml:"story_id"`
	Type      EventType `json:"type" yaml:"type"`
	Phase     Phase     `json:"phase,omitempty" yaml:"phase,omitempty"`
	Actor     string    `json:"actor" yaml:"actor"`
	Target    string    `json:"target" yaml:"target"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Turn is one classified (from, to) stakeholder interaction derived from
// a qualifying event.
type Turn struct {
	From  string    `json:"from" yaml:"from"`
	To    string    `json:"to" yaml:"to"`
	Type  EventType `json:"type" yaml:"type"`
	Phase Phase     `json:"phase" yaml:"phase"`
}

// StakeholderMap translates raw actor names to stakeholder roles. The
// defaults (user->pm, assistant->dev) are lossy domain heuristics carried
// over as data, not logic, so product can revisit them without a code
// change. Unrecognized actors fall back to Fallback.
type StakeholderMap struct {
	Roles    map[string]string `json:"roles" yaml:"roles"`
	Fallback string            `json:"fallback" yaml:"fallback"`
}

// DefaultStakeholderMap returns the carried-over classification table.
func DefaultStakeholderMap() StakeholderMap {
	return StakeholderMap{
		Roles: map[string]string{
			"user":      "pm",
			"pm":        "pm",
			"assistant": "dev",
			"dev":       "dev",
			"developer": "dev",
			"reviewer":  "qa",
			"qa":        "qa",
			"designer":  "ux",
			"ux":        "ux",
		},
		Fallback: "dev",
	}
}

// Classify maps an actor name to its stakeholder role.
func (m StakeholderMap) Classify(actor string) string {
	if role, ok := m.Roles[strings.ToLower(actor)]; ok {
		return role
	}
	return m.Fallback
}

// Options configures counting and insight thresholds.
type Options struct {
	Stakeholders  StakeholderMap `json:"stakeholders" yaml:"stakeholders"`
	HighTurns     float64        `json:"high_turns" yaml:"high_turns"`
	CriticalTurns float64        `json:"critical_turns" yaml:"critical_turns"`
	// ImbalanceRatio flags a trigger type or stakeholder pair that
	// dominates the counts by this factor.
	ImbalanceRatio float64 `json:"imbalance_ratio" yaml:"imbalance_ratio"`
	// PhaseSkew flags a phase holding more than this share of turns.
	PhaseSkew float64 `json:"phase_skew" yaml:"phase_skew"`
}

// DefaultOptions returns the calibrated thresholds.
func DefaultOptions() Options {
	return Options{
		Stakeholders:   DefaultStakeholderMap(),
		HighTurns:      5,
		CriticalTurns:  10,
		ImbalanceRatio: 3,
		PhaseSkew:      0.7,
	}
}

// Result is the turn-counting output: a behavior-free value object.
type Result struct {
	Success       bool              `json:"success" yaml:"success"`
	Error         string            `json:"error,omitempty" yaml:"error,omitempty"`
	Total         int               `json:"total" yaml:"total"`
	ByPair        map[string]int    `json:"by_pair" yaml:"by_pair"`
	ByType        map[EventType]int `json:"by_type" yaml:"by_type"`
	ByPhase       map[Phase]int     `json:"by_phase" yaml:"by_phase"`
	StoryCount    int               `json:"story_count" yaml:"story_count"`
	TurnsPerStory float64           `json:"turns_per_story" yaml:"turns_per_story"`
	Insights      []string          `json:"insights" yaml:"insights"`
}

// postCommitment filters events to the window that counts: phases at or
// past implementation, or (for untagged events) strictly after the
// commitment event's timestamp. With neither a phase tag nor a commitment
// marker, an event does not qualify.
func postCommitment(events []Event) []Event {
	var commitment *time.Time
	for i := range events {
		if events[i].Type == TypeCommitment {
			t := events[i].Timestamp
			commitment = &t
			break
		}
	}

	var out []Event
	for _, e := range events {
		switch e.Phase {
		case PhaseImplementation, PhaseVerification, PhaseComplete:
			out = append(out, e)
		case PhasePlanning:
			// explicitly pre-commitment
		default:
			if commitment != nil && e.Timestamp.After(*commitment) {
				out = append(out, e)
			}
		}
	}
	return out
}

// pairKey normalizes a stakeholder pair to alphabetical order so
// (dev,pm) and (pm,dev) count in the same bucket.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}
