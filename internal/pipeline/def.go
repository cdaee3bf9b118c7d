package pipeline

import (
	"context"

	"storyflow/internal/evidence"
	"storyflow/internal/metrics"
	"storyflow/pkg/flow"
)

// Channel names. Nodes and edges refer to state fields by these; the
// channel table below is the single declaration of their merge behavior.
const (
	chStoryID         = "story_id"
	chEpicPrefix      = "epic_prefix"
	chBaseline        = "baseline"
	chContext         = "retrieved_context"
	chGaps            = "gaps"
	chEvidence        = "evidence"
	chEvents          = "events"
	chImplementResult = "implement_result"
	chGapCount        = "gap_count"
	chACsPassing      = "acs_passing"
	chHasE2E          = "has_e2e"
	chGapReport       = "gap_report"
	chTurnReport      = "turn_report"
	chMetricsReport   = "metrics_report"
)

// mergeEvidence adapts the ledger merge to the channel reducer shape.
// The first bundle written wins the seed; later partial bundles fold in
// without rewinding versions.
func mergeEvidence(old, new any) any {
	nb, ok := new.(evidence.Bundle)
	if !ok {
		return old
	}
	ob, ok := old.(evidence.Bundle)
	if !ok {
		return nb
	}
	return evidence.Merge(ob, nb)
}

// channels is the full state declaration for the story workflow.
func channels() []flow.Channel {
	return []flow.Channel{
		{Name: chStoryID},
		{Name: chEpicPrefix},
		{Name: chBaseline},
		{Name: chContext},
		{Name: chGaps},
		{Name: chEvents},
		{Name: chImplementResult},
		{Name: chEvidence, Reduce: mergeEvidence},
		{Name: flow.DefaultErrorField, Reduce: flow.Append},
		{Name: chGapCount, Default: 0},
		{Name: chACsPassing, Default: true},
		{Name: chHasE2E, Default: false},
		{Name: chGapReport},
		{Name: chTurnReport},
		{Name: chMetricsReport},
	}
}

// Def builds the graph definition for the story workflow. Triage only
// runs when reviewer gaps arrived; the deviation note only runs when the
// captured criteria are not all passing. Every other edge is
// unconditional, so the walk always terminates at the report.
func (b *builder) def() flow.GraphDef {
	return flow.GraphDef{
		Name:  "story_workflow",
		Entry: "intake_reality",
		Config: map[string]any{
			"min_triage_gaps": 1,
		},
		Channels: channels(),
		Nodes: []flow.NodeDef{
			flow.CriticalNode("intake_reality", b.intakeReality),
			flow.ToolNode("retrieve_context", b.retrieveContext),
			flow.ToolNode("seed_story", b.seedStory),
			flow.ToolNode("triage_gaps", b.triageGaps),
			flow.ToolNode("implement_story", b.implementStory),
			flow.ToolNode("capture_evidence", b.captureEvidence),
			flow.ToolNode("e2e_capture", b.captureE2E),
			flow.ToolNode("note_deviations", b.noteDeviations),
			flow.ToolNode("analyze_gaps", b.analyzeGaps),
			flow.ToolNode("count_turns", b.countTurns),
			flow.ToolNode("aggregate_report", b.aggregateReport),
		},
		Edges: []flow.EdgeDef{
			{ID: "E1", Name: "intake done", From: "intake_reality", To: "retrieve_context"},
			{ID: "E2", Name: "context loaded", From: "retrieve_context", To: "seed_story"},
			{ID: "E3", Name: "gaps to triage", From: "seed_story", To: "triage_gaps",
				When: "state.gap_count >= config.min_triage_gaps"},
			{ID: "E4", Name: "no gaps", From: "seed_story", To: "implement_story"},
			{ID: "E5", Name: "triage done", From: "triage_gaps", To: "implement_story"},
			{ID: "E6", Name: "implemented", From: "implement_story", To: "capture_evidence"},
			{ID: "E7", Name: "e2e reported", From: "capture_evidence", To: "e2e_capture",
				When: "state.has_e2e"},
			{ID: "E8", Name: "acs incomplete", From: "capture_evidence", To: "note_deviations",
				When: "!state.acs_passing"},
			{ID: "E9", Name: "acs passing", From: "capture_evidence", To: "analyze_gaps"},
			{ID: "E10", Name: "e2e acs incomplete", From: "e2e_capture", To: "note_deviations",
				When: "!state.acs_passing"},
			{ID: "E11", Name: "e2e captured", From: "e2e_capture", To: "analyze_gaps"},
			{ID: "E12", Name: "deviations noted", From: "note_deviations", To: "analyze_gaps"},
			{ID: "E13", Name: "gaps analyzed", From: "analyze_gaps", To: "count_turns"},
			{ID: "E14", Name: "turns counted", From: "count_turns", To: "aggregate_report"},
			{ID: "E15", Name: "report ready", From: "aggregate_report", To: flow.DoneNode},
		},
	}
}

// Pipeline is a compiled story workflow, safe for repeated Run calls.
type Pipeline struct {
	graph *flow.Graph
}

// Build compiles the workflow graph around the given collaborators.
func Build(deps Deps, opts ...flow.GraphOption) (*Pipeline, error) {
	b := &builder{deps: deps, collectors: metrics.DefaultCollectors()}
	g, err := flow.Compile(b.def(), opts...)
	if err != nil {
		return nil, err
	}
	return &Pipeline{graph: g}, nil
}

// Outcome is the caller-facing result of one workflow run.
type Outcome struct {
	Evidence evidence.Bundle
	Report   metrics.Report
	Errors   []string
	State    flow.State
}

// Run seeds the graph state from the input, walks it, and extracts the
// outcome. The returned error is non-nil only for aborts (bad input, a
// critical node failure, cancellation); degraded runs return a nil error
// with entries in Outcome.Errors.
func (p *Pipeline) Run(ctx context.Context, in Input) (Outcome, error) {
	seed := flow.State{
		chStoryID: in.StoryID,
	}
	if in.EpicPrefix != "" {
		seed[chEpicPrefix] = in.EpicPrefix
	}
	if in.Baseline != nil {
		seed[chBaseline] = in.Baseline
	}
	if in.Context != nil {
		seed[chContext] = *in.Context
	}
	if in.Hygiene != nil {
		seed[chGaps] = in.Hygiene.Gaps
	}
	if len(in.Events) > 0 {
		seed[chEvents] = in.Events
	}

	final, err := p.graph.Invoke(ctx, seed)
	return extract(final), err
}

func extract(s flow.State) Outcome {
	out := Outcome{State: s}
	out.Evidence = stateEvidence(s)
	if r, ok := s[chMetricsReport].(metrics.Report); ok {
		out.Report = r
	}
	if errs, ok := s[flow.DefaultErrorField].([]any); ok {
		for _, e := range errs {
			if msg, ok := e.(string); ok {
				out.Errors = append(out.Errors, msg)
			}
		}
	}
	return out
}
