// Package metrics aggregates analytics collectors (gap yield, turn
// counting) into one report with a deterministic generated summary and
// recommendations. Collectors run concurrently; a failing collector
// produces a failed entry, never a failed report, so downstream
// consumers can always distinguish "ran but found nothing" from
// "could not run".
package metrics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"storyflow/internal/gaps"
	"storyflow/internal/turns"
)

// Input is the shared material handed to every collector.
type Input struct {
	StoryID string        `json:"story_id" yaml:"story_id"`
	Gaps    []gaps.Gap    `json:"gaps" yaml:"gaps"`
	Events  []turns.Event `json:"events" yaml:"events"`
}

// Entry is one collector's contribution to the report.
type Entry struct {
	Type     string   `json:"type" yaml:"type"`
	Success  bool     `json:"success" yaml:"success"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Data     any      `json:"data,omitempty" yaml:"data,omitempty"`
	Insights []string `json:"insights,omitempty" yaml:"insights,omitempty"`
}

// Collector computes one metric family over the input.
type Collector interface {
	Name() string
	Collect(ctx context.Context, in Input) Entry
}

// Report is the aggregated output of one analytics run. Immutable once
// produced.
type Report struct {
	StoryID         string    `json:"story_id" yaml:"story_id"`
	GeneratedAt     time.Time `json:"generated_at" yaml:"generated_at"`
	Entries         []Entry   `json:"entries" yaml:"entries"`
	Insights        []string  `json:"insights" yaml:"insights"`
	Summary         string    `json:"summary" yaml:"summary"`
	Recommendations []string  `json:"recommendations" yaml:"recommendations"`
	Success         bool      `json:"success" yaml:"success"`
}

// timeNow is swapped in tests to pin timestamps.
var timeNow = func() time.Time { return time.Now().UTC() }

// GapCollector adapts the gap analytics engine.
type GapCollector struct {
	Thresholds gaps.Thresholds
}

// EntryGapAnalysis is the entry type emitted by GapCollector.
const EntryGapAnalysis = "gap_analysis"

func (c GapCollector) Name() string { return EntryGapAnalysis }

func (c GapCollector) Collect(ctx context.Context, in Input) Entry {
	if err := ctx.Err(); err != nil {
		return Entry{Type: c.Name(), Success: false, Error: err.Error()}
	}
	r := gaps.Analyze(in.Gaps, c.Thresholds)
	return Entry{Type: c.Name(), Success: r.Success, Error: r.Error, Data: r, Insights: r.Insights}
}

// TurnCollector adapts the turn-counting classifier.
type TurnCollector struct {
	Options turns.Options
}

// EntryTurnCount is the entry type emitted by TurnCollector.
const EntryTurnCount = "turn_count"

func (c TurnCollector) Name() string { return EntryTurnCount }

func (c TurnCollector) Collect(ctx context.Context, in Input) Entry {
	if err := ctx.Err(); err != nil {
		return Entry{Type: c.Name(), Success: false, Error: err.Error()}
	}
	r := turns.Count(in.Events, c.Options)
	return Entry{Type: c.Name(), Success: r.Success, Error: r.Error, Data: r, Insights: r.Insights}
}

// DefaultCollectors returns the standard collector set with default
// thresholds.
func DefaultCollectors() []Collector {
	return []Collector{
		GapCollector{Thresholds: gaps.DefaultThresholds()},
		TurnCollector{Options: turns.DefaultOptions()},
	}
}

// Aggregate runs the configured collectors concurrently and combines
// their entries, insights, summary, and recommendations into one report.
// Entry order matches collector order regardless of completion order.
func Aggregate(ctx context.Context, in Input, collectors ...Collector) Report {
	entries := make([]Entry, len(collectors))

	g, ctx := errgroup.WithContext(ctx)
	for i, c := range collectors {
		i, c := i, c
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					entries[i] = Entry{
						Type:    c.Name(),
						Success: false,
						Error:   fmt.Sprintf("collector panicked: %v", p),
					}
				}
			}()
			entries[i] = c.Collect(ctx, in)
			return nil
		})
	}
	_ = g.Wait() // collectors report failure via entries, not errors

	report := Report{
		StoryID:     in.StoryID,
		GeneratedAt: timeNow(),
		Entries:     entries,
		Success:     true,
	}
	for _, e := range entries {
		report.Insights = append(report.Insights, e.Insights...)
		if !e.Success {
			report.Success = false
		}
	}
	report.Summary = buildSummary(report)
	report.Recommendations = buildRecommendations(report)
	return report
}
