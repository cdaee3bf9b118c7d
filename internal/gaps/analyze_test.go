package gaps

import (
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

// mkGap builds a gap with a created history entry at t0.
func mkGap(id, source string, cat Category) Gap {
	return Gap{
		ID:       id,
		Source:   source,
		Category: cat,
		History:  []Action{{Type: ActionCreated, Timestamp: t0}},
	}
}

func accepted(g Gap) Gap {
	g.Acknowledged = true
	g.History = append(g.History, Action{Type: ActionAcknowledged, Timestamp: t0.Add(time.Hour)})
	return g
}

func resolvedAfter(g Gap, d time.Duration) Gap {
	g.Resolved = true
	g.History = append(g.History, Action{Type: ActionResolved, Timestamp: t0.Add(d)})
	return g
}

func deferred(g Gap) Gap {
	g.History = append(g.History, Action{Type: ActionDeferred, Timestamp: t0.Add(time.Hour)})
	return g
}

func hasInsight(insights []string, fragment string) bool {
	for _, s := range insights {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func TestAnalyze_EmptyInput(t *testing.T) {
	r := Analyze(nil, DefaultThresholds())
	if !r.Success {
		t.Error("empty input must still succeed")
	}
	if r.Yield.Ratio != 0 {
		t.Errorf("ratio = %v, want 0 for zero suggested", r.Yield.Ratio)
	}
	if r.Resolution.Average != nil {
		t.Error("average resolution must be nil, not 0, with no resolved gaps")
	}
	if !hasInsight(r.Insights, "Insufficient gaps for meaningful analysis (0 < 5)") {
		t.Errorf("insights = %v", r.Insights)
	}
}

func TestAnalyze_InsufficientGapsLiteral(t *testing.T) {
	gaps := []Gap{
		mkGap("G1", "pm_review", CategoryFuture),
		mkGap("G2", "qa_sweep", CategoryImportant),
	}
	r := Analyze(gaps, DefaultThresholds())
	if !r.Success {
		t.Error("success = false, want true")
	}
	want := "Insufficient gaps for meaningful analysis (2 < 5)"
	if !hasInsight(r.Insights, want) {
		t.Errorf("insights = %v, want literal %q", r.Insights, want)
	}
}

func TestAnalyze_YieldThresholds(t *testing.T) {
	tests := []struct {
		name         string
		accepted     int
		wantRatio    float64
		wantFragment string
	}{
		{"well calibrated", 8, 0.8, "well-calibrated"},
		{"refine detection", 2, 0.2, "refine detection criteria"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gaps []Gap
			for i := 0; i < 10; i++ {
				g := mkGap("G"+string(rune('0'+i)), "pm_review", CategoryFuture)
				if i < tt.accepted {
					g = accepted(g)
				}
				gaps = append(gaps, g)
			}
			r := Analyze(gaps, DefaultThresholds())
			if r.Yield.Ratio < tt.wantRatio-1e-9 || r.Yield.Ratio > tt.wantRatio+1e-9 {
				t.Errorf("ratio = %v, want %v", r.Yield.Ratio, tt.wantRatio)
			}
			if r.Yield.Ratio < 0 || r.Yield.Ratio > 1 {
				t.Errorf("ratio %v outside [0,1]", r.Yield.Ratio)
			}
			if !hasInsight(r.Insights, tt.wantFragment) {
				t.Errorf("insights = %v, want fragment %q", r.Insights, tt.wantFragment)
			}
		})
	}

	// Yield of exactly 0.8 triggers neither rule (strict inequalities).
	t.Run("boundary silent", func(t *testing.T) {
		var gaps []Gap
		for i := 0; i < 5; i++ {
			g := mkGap("G"+string(rune('0'+i)), "pm_review", CategoryFuture)
			if i < 4 {
				g = accepted(g)
			}
			gaps = append(gaps, g)
		}
		r := Analyze(gaps, DefaultThresholds())
		if hasInsight(r.Insights, "well-calibrated") || hasInsight(r.Insights, "refine detection") {
			t.Errorf("insights = %v, want no yield insight at 0.8", r.Insights)
		}
	})
}

func TestAnalyze_RejectedNeedsDeferral(t *testing.T) {
	gaps := []Gap{
		deferred(mkGap("G1", "pm_review", CategoryFuture)),          // rejected
		accepted(deferred(mkGap("G2", "pm_review", CategoryFuture))), // deferred then accepted
		mkGap("G3", "pm_review", CategoryFuture),                     // open, neither
	}
	r := Analyze(gaps, DefaultThresholds())
	if r.Yield.Accepted != 1 || r.Yield.Rejected != 1 {
		t.Errorf("accepted/rejected = %d/%d, want 1/1", r.Yield.Accepted, r.Yield.Rejected)
	}
}

func TestAnalyze_SourceSpread(t *testing.T) {
	var gaps []Gap
	// qa: 3 of 3 accepted; pm: 0 of 3 accepted; ux: 1 sample, ignored.
	for i := 0; i < 3; i++ {
		gaps = append(gaps, accepted(mkGap("QA", "qa_sweep", CategoryFuture)))
		gaps = append(gaps, mkGap("PM", "pm_review", CategoryFuture))
	}
	gaps = append(gaps, accepted(mkGap("UX", "ux_pass", CategoryFuture)))

	r := Analyze(gaps, DefaultThresholds())
	if !hasInsight(r.Insights, "qa gaps are accepted far more often than pm gaps") {
		t.Errorf("insights = %v, want qa-vs-pm comparative insight", r.Insights)
	}
	if st := r.BySource[SourceUX]; st.Total != 1 {
		t.Errorf("ux total = %d, want 1", st.Total)
	}
}

func TestAnalyze_EvidenceBacking(t *testing.T) {
	withACs := mkGap("G1", "pm_review", CategoryFuture)
	withACs.RelatedACs = []string{"AC1"}
	longSuggestion := mkGap("G2", "pm_review", CategoryFuture)
	longSuggestion.Suggestion = "validate upload size limits"
	shortSuggestion := mkGap("G3", "pm_review", CategoryFuture)
	shortSuggestion.Suggestion = "fix it" // <= 10 chars, not evidence
	merged := mkGap("G4", "pm_review", CategoryFuture)
	merged.MergedFrom = []string{"G9"}
	bare := mkGap("G5", "pm_review", CategoryFuture)

	r := Analyze([]Gap{withACs, longSuggestion, shortSuggestion, merged, bare}, DefaultThresholds())
	if r.Evidence.Backed != 3 {
		t.Errorf("backed = %d, want 3", r.Evidence.Backed)
	}
	// 3/5 = 0.6, above the 0.5 threshold: no substantiation insight.
	if hasInsight(r.Insights, "improve substantiation") {
		t.Errorf("insights = %v, unexpected substantiation insight", r.Insights)
	}

	r2 := Analyze([]Gap{shortSuggestion, bare, mkGap("G6", "qa_x", CategoryFuture),
		mkGap("G7", "qa_y", CategoryFuture), withACs}, DefaultThresholds())
	if !hasInsight(r2.Insights, "improve substantiation") {
		t.Errorf("insights = %v, want substantiation insight at 20%%", r2.Insights)
	}
}

func TestAnalyze_ResolutionTime(t *testing.T) {
	fast := resolvedAfter(mkGap("G1", "pm_review", CategoryBlocking), 48*time.Hour)
	slow := resolvedAfter(mkGap("G2", "pm_review", CategoryBlocking), 10*24*time.Hour)
	open := mkGap("G3", "qa_sweep", CategoryFuture)

	r := Analyze([]Gap{fast, slow, open, mkGap("G4", "ux_a", CategoryFuture),
		mkGap("G5", "ux_b", CategoryFuture)}, DefaultThresholds())

	if r.Resolution.ResolvedCount != 2 {
		t.Fatalf("resolved count = %d, want 2", r.Resolution.ResolvedCount)
	}
	if r.Resolution.Average == nil {
		t.Fatal("overall average is nil with resolved gaps present")
	}
	if want := 6 * 24 * time.Hour; *r.Resolution.Average != want {
		t.Errorf("average = %v, want %v", *r.Resolution.Average, want)
	}
	if r.Resolution.ByCategory[CategoryFuture] != nil {
		t.Error("future category average must be nil, no resolved gaps there")
	}
}

func TestAnalyze_BlockingResolutionInsight(t *testing.T) {
	var gaps []Gap
	for i := 0; i < 5; i++ {
		gaps = append(gaps, resolvedAfter(mkGap("G", "pm_review", CategoryBlocking), 9*24*time.Hour))
	}
	r := Analyze(gaps, DefaultThresholds())
	if !hasInsight(r.Insights, "9.0 days") {
		t.Errorf("insights = %v, want explicit day count", r.Insights)
	}
}

func TestAnalyze_BacklogInsight(t *testing.T) {
	var gaps []Gap
	gaps = append(gaps, resolvedAfter(mkGap("G0", "pm_review", CategoryFuture), time.Hour))
	for i := 0; i < 9; i++ {
		gaps = append(gaps, mkGap("G", "pm_review", CategoryFuture))
	}
	r := Analyze(gaps, DefaultThresholds())
	if !hasInsight(r.Insights, "backlog accumulating") {
		t.Errorf("insights = %v, want backlog insight at 10%% resolution", r.Insights)
	}
}

func TestSourceGroupOf(t *testing.T) {
	tests := []struct {
		source string
		want   SourceGroup
	}{
		{"pm_review", SourcePM},
		{"ux_heuristic_pass", SourceUX},
		{"qa_sweep", SourceQA},
		{"attack_red_team", SourceAttack},
		{"mystery", SourceUnknown},
	}
	for _, tt := range tests {
		if got := SourceGroupOf(tt.source); got != tt.want {
			t.Errorf("SourceGroupOf(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}
