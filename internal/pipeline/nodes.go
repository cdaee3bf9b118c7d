package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storyflow/internal/evidence"
	"storyflow/internal/gaps"
	"storyflow/internal/metrics"
	"storyflow/internal/turns"
	"storyflow/pkg/flow"
)

// ErrNoStoryID is returned by the intake node when the invocation carries
// no story identifier. Intake is critical, so this aborts the walk.
var ErrNoStoryID = errors.New("pipeline: story_id is required")

// builder carries the collaborator seams into node closures.
type builder struct {
	deps       Deps
	collectors []metrics.Collector
}

// intakeReality validates the invocation inputs before anything else
// runs. Missing story ID is fatal; an absent baseline just means the
// story starts from a clean slate.
func (b *builder) intakeReality(ctx context.Context, s flow.State) (flow.Update, error) {
	storyID := stateString(s, chStoryID)
	if strings.TrimSpace(storyID) == "" {
		return nil, ErrNoStoryID
	}

	update := flow.Update{}
	if stateString(s, chEpicPrefix) == "" {
		if i := strings.IndexByte(storyID, '-'); i > 0 {
			update[chEpicPrefix] = storyID[:i]
		}
	}

	if baseline, ok := s[chBaseline].(*BaselineReality); ok && baseline != nil {
		for _, path := range baseline.MustNotTouch {
			for _, wip := range baseline.InProgress {
				if path == wip {
					return nil, fmt.Errorf("pipeline: %q is both in progress and protected", path)
				}
			}
		}
	}
	return update, nil
}

// retrieveContext loads file context through the retriever unless the
// caller pre-loaded it. Retriever failures are transient: the walk
// retries, then degrades to an empty context.
func (b *builder) retrieveContext(ctx context.Context, s flow.State) (flow.Update, error) {
	if rc, ok := s[chContext].(RetrievedContext); ok && len(rc.Files) > 0 {
		return nil, nil
	}
	if b.deps.Retriever == nil {
		return flow.Update{chContext: RetrievedContext{}}, nil
	}
	rc, err := b.deps.Retriever.Retrieve(ctx, stateString(s, chStoryID))
	if err != nil {
		return nil, flow.MarkTransient(fmt.Errorf("retrieve context: %w", err))
	}
	return flow.Update{chContext: rc}, nil
}

// seedStory opens the evidence ledger for the story and publishes the
// branch flags the downstream edges read.
func (b *builder) seedStory(ctx context.Context, s flow.State) (flow.Update, error) {
	bundle := evidence.New(stateString(s, chStoryID))
	return flow.Update{
		chEvidence:   bundle,
		chGapCount:   len(stateGaps(s)),
		chACsPassing: true, // no criteria recorded yet
		chHasE2E:     false,
	}, nil
}

// categoryRank orders gap categories blocking-first for triage.
var categoryRank = map[gaps.Category]int{
	gaps.CategoryBlocking:  0,
	gaps.CategoryImportant: 1,
	gaps.CategoryFuture:    2,
	gaps.CategoryDeferred:  3,
}

// triageGaps orders the reviewer gaps blocking-first and records the
// triage outcome as a ledger decision. Unsubstantiated blocking gaps are
// surfaced on the error log rather than silently carried forward.
func (b *builder) triageGaps(ctx context.Context, s flow.State) (flow.Update, error) {
	list := stateGaps(s)
	sorted := append([]gaps.Gap(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return categoryRank[sorted[i].Category] < categoryRank[sorted[j].Category]
	})

	blocking := 0
	var unsubstantiated []string
	for _, g := range sorted {
		if g.Category != gaps.CategoryBlocking {
			continue
		}
		blocking++
		if !g.HasEvidence() {
			unsubstantiated = append(unsubstantiated, g.ID)
		}
	}

	update := flow.Update{
		chGaps: sorted,
		chEvidence: evidence.AddDecision(evidence.Delta(stateEvidence(s)),
			fmt.Sprintf("triaged %d gaps (%d blocking)", len(sorted), blocking)),
	}
	if len(unsubstantiated) > 0 {
		update[flow.DefaultErrorField] = []any{
			fmt.Sprintf("blocking gaps without evidence: %s", strings.Join(unsubstantiated, ", ")),
		}
	}
	return update, nil
}

// implementStory delegates to the implementer and stashes its raw result
// for the capture node. Implementer failures are transient.
func (b *builder) implementStory(ctx context.Context, s flow.State) (flow.Update, error) {
	if b.deps.Implementer == nil {
		return nil, errors.New("pipeline: no implementer configured")
	}
	req := ImplementRequest{
		StoryID: stateString(s, chStoryID),
		Gaps:    stateGaps(s),
	}
	if baseline, ok := s[chBaseline].(*BaselineReality); ok {
		req.Baseline = baseline
	}
	if rc, ok := s[chContext].(RetrievedContext); ok {
		req.Context = rc
	}

	res, err := b.deps.Implementer.Implement(ctx, req)
	if err != nil {
		return nil, flow.MarkTransient(fmt.Errorf("implement %s: %w", req.StoryID, err))
	}
	return flow.Update{chImplementResult: res}, nil
}

// captureEvidence folds the implementer's reported facts into a ledger
// delta, one versioned operation per fact, then refreshes the branch
// flags. The delta merges into the evidence channel without duplicating
// records already on the ledger.
func (b *builder) captureEvidence(ctx context.Context, s flow.State) (flow.Update, error) {
	res, ok := s[chImplementResult].(ImplementResult)
	if !ok {
		// implement_story degraded; nothing to capture.
		return flow.Update{chACsPassing: evidence.AllACsPassing(stateEvidence(s))}, nil
	}

	delta := evidence.Delta(stateEvidence(s))
	for _, ac := range res.ACs {
		delta = evidence.UpdateAC(delta, ac.ACID, evidence.ACPatch{
			Status:        ac.Status,
			EvidenceItems: ac.EvidenceItems,
			Reason:        ac.Reason,
		})
	}
	for _, f := range res.TouchedFiles {
		delta = evidence.AddTouchedFile(delta, f.Path, f.Action)
	}
	for _, run := range res.Commands {
		delta = evidence.AddCommandRun(delta, run)
	}
	for _, ep := range res.Endpoints {
		delta = evidence.AddEndpoint(delta, ep)
	}
	for _, d := range res.Decisions {
		delta = evidence.AddDecision(delta, d)
	}
	for _, d := range res.Deviations {
		delta = evidence.AddDeviation(delta, d)
	}
	if res.Tokens != nil {
		delta = evidence.SetTokenSummary(delta, *res.Tokens)
	}
	if res.Tests != nil {
		delta = evidence.SetTestSummary(delta, *res.Tests)
	}

	merged := evidence.Merge(stateEvidence(s), delta)
	return flow.Update{
		chEvidence:   delta,
		chACsPassing: evidence.AllACsPassing(merged),
		chHasE2E:     res.E2E != nil,
	}, nil
}

// captureE2E records the live E2E run and any config issues found during
// it. Only reached when the implementer reported an E2E run.
func (b *builder) captureE2E(ctx context.Context, s flow.State) (flow.Update, error) {
	res, ok := s[chImplementResult].(ImplementResult)
	if !ok || res.E2E == nil {
		return nil, nil
	}

	delta := evidence.AddE2E(evidence.Delta(stateEvidence(s)), *res.E2E)
	for _, issue := range res.ConfigIssues {
		var err error
		if delta, err = evidence.AddConfigIssue(delta, issue); err != nil {
			return nil, err
		}
	}
	return flow.Update{chEvidence: delta}, nil
}

// noteDeviations records the not-yet-passing criteria as a known
// deviation so an incomplete story terminates with an honest ledger.
func (b *builder) noteDeviations(ctx context.Context, s flow.State) (flow.Update, error) {
	bundle := stateEvidence(s)
	missing := evidence.MissingACs(bundle)
	if len(missing) == 0 {
		return nil, nil
	}
	delta := evidence.AddDeviation(evidence.Delta(bundle),
		fmt.Sprintf("acceptance criteria not passing: %s", strings.Join(missing, ", ")))
	return flow.Update{chEvidence: delta}, nil
}

// analyzeGaps runs the gap analytics engine over the triaged gaps.
func (b *builder) analyzeGaps(ctx context.Context, s flow.State) (flow.Update, error) {
	return flow.Update{chGapReport: gaps.Analyze(stateGaps(s), gaps.DefaultThresholds())}, nil
}

// countTurns runs the post-commitment turn counter over the event log.
func (b *builder) countTurns(ctx context.Context, s flow.State) (flow.Update, error) {
	return flow.Update{chTurnReport: turns.Count(stateEvents(s), turns.DefaultOptions())}, nil
}

// aggregateReport combines the analytics collectors into the final
// metrics report.
func (b *builder) aggregateReport(ctx context.Context, s flow.State) (flow.Update, error) {
	in := metrics.Input{
		StoryID: stateString(s, chStoryID),
		Gaps:    stateGaps(s),
		Events:  stateEvents(s),
	}
	return flow.Update{chMetricsReport: metrics.Aggregate(ctx, in, b.collectors...)}, nil
}

// State accessors. Channels are typed by convention; a missing or
// mistyped value reads as the zero value.

func stateString(s flow.State, key string) string {
	v, _ := s[key].(string)
	return v
}

func stateGaps(s flow.State) []gaps.Gap {
	v, _ := s[chGaps].([]gaps.Gap)
	return v
}

func stateEvents(s flow.State) []turns.Event {
	v, _ := s[chEvents].([]turns.Event)
	return v
}

func stateEvidence(s flow.State) evidence.Bundle {
	v, _ := s[chEvidence].(evidence.Bundle)
	return v
}
