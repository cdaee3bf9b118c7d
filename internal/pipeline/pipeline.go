// Package pipeline defines the story workflow graph: reality intake,
// story seeding, implementation, evidence capture, and metrics analytics,
// wired as flow nodes over a declared channel table. The surrounding
// runner supplies collaborator implementations through Deps; the pipeline
// itself performs no network or storage I/O.
package pipeline

import (
	"context"

	"storyflow/internal/evidence"
	"storyflow/internal/gaps"
	"storyflow/internal/turns"
)

// BaselineReality is the collaborator snapshot of what already exists
// before the story starts.
type BaselineReality struct {
	Existing     []string `json:"existing" yaml:"existing"`
	InProgress   []string `json:"in_progress" yaml:"in_progress"`
	MustNotTouch []string `json:"must_not_touch" yaml:"must_not_touch"`
}

// ContextFile is one retrieved file with loaded content.
type ContextFile struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

// RetrievedContext is the file context a collaborator loaded for the story.
type RetrievedContext struct {
	Files []ContextFile `json:"files" yaml:"files"`
}

// HygieneResult carries the ranked gaps a reviewer pass produced.
type HygieneResult struct {
	Gaps []gaps.Gap `json:"gaps" yaml:"gaps"`
}

// Input is everything a caller hands to one pipeline invocation.
type Input struct {
	StoryID    string            `json:"story_id" yaml:"story_id"`
	EpicPrefix string            `json:"epic_prefix" yaml:"epic_prefix"`
	Baseline   *BaselineReality  `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Context    *RetrievedContext `json:"context,omitempty" yaml:"context,omitempty"`
	Hygiene    *HygieneResult    `json:"hygiene,omitempty" yaml:"hygiene,omitempty"`
	Events     []turns.Event     `json:"events,omitempty" yaml:"events,omitempty"`
}

// ImplementResult is the set of facts an implementer reports back for the
// evidence ledger.
type ImplementResult struct {
	ACs          []evidence.ACEvidence        `json:"acs" yaml:"acs"`
	TouchedFiles []evidence.TouchedFile       `json:"touched_files" yaml:"touched_files"`
	Commands     []evidence.CommandRun        `json:"commands" yaml:"commands"`
	Endpoints    []evidence.EndpointExercised `json:"endpoints" yaml:"endpoints"`
	Decisions    []string                     `json:"decisions" yaml:"decisions"`
	Deviations   []string                     `json:"deviations" yaml:"deviations"`
	Tokens       *evidence.TokenSummary       `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Tests        *evidence.TestSummary        `json:"tests,omitempty" yaml:"tests,omitempty"`
	E2E          *evidence.E2EResults         `json:"e2e,omitempty" yaml:"e2e,omitempty"`
	ConfigIssues []string                     `json:"config_issues,omitempty" yaml:"config_issues,omitempty"`
}

// ContextRetriever loads file context for a story when the caller did not
// supply it up front.
type ContextRetriever interface {
	Retrieve(ctx context.Context, storyID string) (RetrievedContext, error)
}

// Implementer executes the story against the retrieved context and
// reports evidence facts. Implementations live with collaborators (agent
// runners, humans filing YAML); the pipeline only consumes the result.
type Implementer interface {
	Implement(ctx context.Context, req ImplementRequest) (ImplementResult, error)
}

// ImplementRequest is the material an implementer works from.
type ImplementRequest struct {
	StoryID  string
	Baseline *BaselineReality
	Context  RetrievedContext
	Gaps     []gaps.Gap
}

// StaticImplementer returns a fixed result. Used by the CLI runner (facts
// filed from YAML) and by tests.
type StaticImplementer struct {
	Result ImplementResult
	Err    error
}

func (s StaticImplementer) Implement(ctx context.Context, req ImplementRequest) (ImplementResult, error) {
	return s.Result, s.Err
}

// Deps are the collaborator seams for one pipeline. Retriever may be nil
// when callers pre-load context; Implementer is required.
type Deps struct {
	Retriever   ContextRetriever
	Implementer Implementer
}
