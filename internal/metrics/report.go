package metrics

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"storyflow/internal/gaps"
	"storyflow/internal/turns"
)

// buildSummary assembles the executive summary from fixed template
// fragments. No free-form generation: the same report always renders the
// same summary.
func buildSummary(r Report) string {
	succeeded := 0
	for _, e := range r.Entries {
		if e.Success {
			succeeded++
		}
	}

	parts := []string{fmt.Sprintf("Metrics run for %s: %d/%d collectors succeeded.",
		r.StoryID, succeeded, len(r.Entries))}

	for _, e := range r.Entries {
		switch data := e.Data.(type) {
		case gaps.Result:
			parts = append(parts, fmt.Sprintf(
				"Gap yield %.0f%% across %d suggested gaps (%d accepted, %d rejected).",
				data.Yield.Ratio*100, data.Yield.Suggested, data.Yield.Accepted, data.Yield.Rejected))
		case turns.Result:
			parts = append(parts, fmt.Sprintf(
				"%d post-commitment turns across %d stories (%.1f per story).",
				data.Total, data.StoryCount, data.TurnsPerStory))
		}
		if !e.Success {
			parts = append(parts, fmt.Sprintf("%s could not run: %s.", e.Type, e.Error))
		}
	}

	return strings.Join(parts, " ")
}

// buildRecommendations applies the fixed rule table. When nothing fires
// and every collector succeeded, the single healthy default is emitted
// instead of an empty list.
func buildRecommendations(r Report) []string {
	var out []string
	var failed []string

	for _, e := range r.Entries {
		if !e.Success {
			failed = append(failed, e.Type)
			continue
		}
		switch data := e.Data.(type) {
		case gaps.Result:
			th := gaps.DefaultThresholds()
			if data.GapCount >= th.MinGaps && data.Yield.Ratio < th.LowYield {
				out = append(out, "Refine gap detection criteria before the next reviewer pass")
			}
			if data.GapCount > 0 && data.Evidence.Rate < th.LowEvidenceRate {
				out = append(out, "Require related ACs or a concrete suggestion when filing gaps")
			}
		case turns.Result:
			opts := turns.DefaultOptions()
			if data.TurnsPerStory >= opts.HighTurns {
				out = append(out, "Add a pre-commitment clarification pass to reduce downstream turns")
			}
		}
	}

	if len(failed) > 0 {
		out = append(out, "Re-run failed collectors: "+strings.Join(failed, ", "))
	}
	if len(out) == 0 && r.Success {
		out = append(out, "All metrics are healthy; no action needed")
	}
	return out
}

// EncodeYAML serializes a report for persistence or display.
func EncodeYAML(r Report) ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("metrics: marshal report: %w", err)
	}
	return out, nil
}

// DecodeYAML parses a serialized report. Entry data decodes to generic
// maps; consumers needing typed access should work from the live Report.
func DecodeYAML(data []byte) (Report, error) {
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("metrics: unmarshal report: %w", err)
	}
	return r, nil
}

// Format renders the human-readable report.
func Format(r Report) string {
	var b strings.Builder

	b.WriteString("=== Story Metrics Report ===\n")
	b.WriteString(fmt.Sprintf("Story:     %s\n", r.StoryID))
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")))

	b.WriteString("--- Collectors ---\n")
	for _, e := range r.Entries {
		mark := "✓"
		if !e.Success {
			mark = "✗"
		}
		line := fmt.Sprintf("%-14s %s", e.Type, mark)
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if len(r.Insights) > 0 {
		b.WriteString("--- Insights ---\n")
		for _, s := range r.Insights {
			b.WriteString("• " + s + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("--- Summary ---\n")
	b.WriteString(r.Summary + "\n\n")

	b.WriteString("--- Recommendations ---\n")
	for _, s := range r.Recommendations {
		b.WriteString("• " + s + "\n")
	}

	return b.String()
}
