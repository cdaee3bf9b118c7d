package turns

import (
	"fmt"
	"sort"
)

// Count classifies post-commitment clarification and scope-change events
// into normalized stakeholder-pair turns and derives rule-based insights.
// Missing or empty input yields a well-formed zero result, never an error.
func Count(events []Event, opts Options) Result {
	r := Result{
		Success: true,
		ByPair:  make(map[string]int),
		ByType:  make(map[EventType]int),
		ByPhase: make(map[Phase]int),
	}

	stories := make(map[string]bool)
	for _, e := range postCommitment(events) {
		if e.Type != TypeClarification && e.Type != TypeScopeChange {
			continue
		}
		from := opts.Stakeholders.Classify(e.Actor)
		to := opts.Stakeholders.Classify(e.Target)
		if from == to {
			// self-pairs carry no cross-stakeholder signal
			continue
		}
		r.Total++
		r.ByPair[pairKey(from, to)]++
		r.ByType[e.Type]++
		r.ByPhase[e.Phase]++
		if e.StoryID != "" {
			stories[e.StoryID] = true
		}
	}

	r.StoryCount = len(stories)
	if r.StoryCount == 0 && r.Total > 0 {
		r.StoryCount = 1 // untagged events all belong to the one story in scope
	}
	if r.StoryCount > 0 {
		r.TurnsPerStory = float64(r.Total) / float64(r.StoryCount)
	}
	r.Insights = turnInsights(r, opts)
	return r
}

func turnInsights(r Result, opts Options) []string {
	var out []string
	if r.Total == 0 {
		return []string{"No post-commitment turns recorded"}
	}

	switch {
	case r.TurnsPerStory >= opts.CriticalTurns:
		out = append(out, fmt.Sprintf(
			"Critical turn count: %.1f turns per story signals unstable commitments", r.TurnsPerStory))
	case r.TurnsPerStory >= opts.HighTurns:
		out = append(out, fmt.Sprintf(
			"high turn count: %.1f turns per story, stories may be under-specified at commitment",
			r.TurnsPerStory))
	}

	clar := r.ByType[TypeClarification]
	scope := r.ByType[TypeScopeChange]
	ratio := opts.ImbalanceRatio
	if scope > 0 && float64(clar) >= float64(scope)*ratio {
		out = append(out, fmt.Sprintf(
			"Clarifications outnumber scope changes %d:%d, acceptance criteria may lack detail",
			clar, scope))
	}
	if clar > 0 && float64(scope) >= float64(clar)*ratio {
		out = append(out, fmt.Sprintf(
			"Scope changes outnumber clarifications %d:%d, commitments are not holding",
			scope, clar))
	}

	if pair, count, ok := dominantPair(r.ByPair); ok {
		if float64(count) >= ratio*float64(r.Total-count) && r.Total-count > 0 {
			out = append(out, fmt.Sprintf(
				"Stakeholder pair %s dominates with %d of %d turns", pair, count, r.Total))
		}
	}

	for _, phase := range []Phase{PhaseImplementation, PhaseVerification} {
		if share := float64(r.ByPhase[phase]) / float64(r.Total); share > opts.PhaseSkew {
			out = append(out, fmt.Sprintf(
				"%.0f%% of turns land in the %s phase", share*100, phase))
		}
	}

	return out
}

// dominantPair returns the pair with the highest count, ties broken by
// key order for determinism.
func dominantPair(byPair map[string]int) (string, int, bool) {
	if len(byPair) == 0 {
		return "", 0, false
	}
	keys := make([]string, 0, len(byPair))
	for k := range byPair {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestCount := keys[0], byPair[keys[0]]
	for _, k := range keys[1:] {
		if byPair[k] > bestCount {
			best, bestCount = k, byPair[k]
		}
	}
	return best, bestCount, true
}
