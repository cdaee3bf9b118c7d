package gaps

import (
	"fmt"
	"sort"
	"time"
)

// Thresholds tune the rule-based insight generation. All rules are
// deterministic; the same gaps and thresholds always produce the same
// insights.
type Thresholds struct {
	MinGaps          int     `json:"min_gaps" yaml:"min_gaps"`
	LowYield         float64 `json:"low_yield" yaml:"low_yield"`
	HighYield        float64 `json:"high_yield" yaml:"high_yield"`
	SourceGapDelta   float64 `json:"source_gap_delta" yaml:"source_gap_delta"`
	MinSourceSamples int     `json:"min_source_samples" yaml:"min_source_samples"`
	LowEvidenceRate  float64 `json:"low_evidence_rate" yaml:"low_evidence_rate"`
	LowResolution    float64 `json:"low_resolution_rate" yaml:"low_resolution_rate"`
	BlockingDays     float64 `json:"blocking_resolution_days" yaml:"blocking_resolution_days"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinGaps:          5,
		LowYield:         0.3,
		HighYield:        0.8,
		SourceGapDelta:   0.2,
		MinSourceSamples: 3,
		LowEvidenceRate:  0.5,
		LowResolution:    0.2,
		BlockingDays:     7,
	}
}

// Yield summarizes how many suggested gaps were ultimately accepted.
type Yield struct {
	Suggested int     `json:"suggested" yaml:"suggested"`
	Accepted  int     `json:"accepted" yaml:"accepted"`
	Rejected  int     `json:"rejected" yaml:"rejected"`
	Ratio     float64 `json:"ratio" yaml:"ratio"`
}

// SourceStats is the acceptance rate for one reviewer source group, with
// raw counts retained for significance filtering.
type SourceStats struct {
	Total    int     `json:"total" yaml:"total"`
	Accepted int     `json:"accepted" yaml:"accepted"`
	Rate     float64 `json:"rate" yaml:"rate"`
}

// EvidenceBacking reports how many gaps were substantiated.
type EvidenceBacking struct {
	Backed     int                  `json:"backed" yaml:"backed"`
	Total      int                  `json:"total" yaml:"total"`
	Rate       float64              `json:"rate" yaml:"rate"`
	ByCategory map[Category]float64 `json:"by_category" yaml:"by_category"`
}

// ResolutionStats reports created-to-resolved times. Averages are nil
// (not zero) when a bucket has no resolved gaps.
type ResolutionStats struct {
	ResolvedCount int                         `json:"resolved_count" yaml:"resolved_count"`
	Average       *time.Duration              `json:"average,omitempty" yaml:"average,omitempty"`
	ByCategory    map[Category]*time.Duration `json:"by_category" yaml:"by_category"`
}

// Result is the full gap-analytics output: a behavior-free value object.
// Success distinguishes "analysis ran" from "analysis could not run";
// an empty gap list still yields Success with a zero-valued result.
type Result struct {
	Success    bool                        `json:"success" yaml:"success"`
	Error      string                      `json:"error,omitempty" yaml:"error,omitempty"`
	GapCount   int                         `json:"gap_count" yaml:"gap_count"`
	Yield      Yield                       `json:"yield" yaml:"yield"`
	BySource   map[SourceGroup]SourceStats `json:"by_source" yaml:"by_source"`
	Evidence   EvidenceBacking             `json:"evidence" yaml:"evidence"`
	Resolution ResolutionStats             `json:"resolution" yaml:"resolution"`
	Insights   []string                    `json:"insights" yaml:"insights"`
}

// Analyze computes yield, per-source acceptance, evidence backing,
// resolution times, and rule-based insights over a gap list. It never
// fails on missing or empty input; downstream aggregation can always run.
func Analyze(gaps []Gap, th Thresholds) Result {
	r := Result{
		Success:  true,
		GapCount: len(gaps),
		BySource: make(map[SourceGroup]SourceStats),
		Evidence: EvidenceBacking{ByCategory: make(map[Category]float64)},
		Resolution: ResolutionStats{
			ByCategory: make(map[Category]*time.Duration),
		},
	}

	r.Yield = computeYield(gaps)
	r.BySource = computeBySource(gaps)
	r.Evidence = computeEvidence(gaps)
	r.Resolution = computeResolution(gaps)
	r.Insights = insights(r, th)

	return r
}

func computeYield(gaps []Gap) Yield {
	y := Yield{Suggested: len(gaps)}
	for _, g := range gaps {
		if g.Accepted() {
			y.Accepted++
		} else if g.Rejected() {
			y.Rejected++
		}
	}
	y.Ratio = safeRatio(y.Accepted, y.Suggested)
	return y
}

func computeBySource(gaps []Gap) map[SourceGroup]SourceStats {
	out := make(map[SourceGroup]SourceStats)
	for _, g := range gaps {
		grp := SourceGroupOf(g.Source)
		st := out[grp]
		st.Total++
		if g.Accepted() {
			st.Accepted++
		}
		out[grp] = st
	}
	for grp, st := range out {
		st.Rate = safeRatio(st.Accepted, st.Total)
		out[grp] = st
	}
	return out
}

func computeEvidence(gaps []Gap) EvidenceBacking {
	eb := EvidenceBacking{
		Total:      len(gaps),
		ByCategory: make(map[Category]float64),
	}
	backedByCat := make(map[Category]int)
	totalByCat := make(map[Category]int)
	for _, g := range gaps {
		totalByCat[g.Category]++
		if g.HasEvidence() {
			eb.Backed++
			backedByCat[g.Category]++
		}
	}
	eb.Rate = safeRatio(eb.Backed, eb.Total)
	for cat, total := range totalByCat {
		eb.ByCategory[cat] = safeRatio(backedByCat[cat], total)
	}
	return eb
}

func computeResolution(gaps []Gap) ResolutionStats {
	rs := ResolutionStats{ByCategory: make(map[Category]*time.Duration)}
	var all []time.Duration
	byCat := make(map[Category][]time.Duration)
	for _, g := range gaps {
		d, ok := g.ResolutionTime()
		if !ok {
			continue
		}
		rs.ResolvedCount++
		all = append(all, d)
		byCat[g.Category] = append(byCat[g.Category], d)
	}
	rs.Average = meanDuration(all)
	for cat, ds := range byCat {
		rs.ByCategory[cat] = meanDuration(ds)
	}
	return rs
}

// insights applies the fixed rule set to an analytics result.
func insights(r Result, th Thresholds) []string {
	var out []string

	if r.GapCount < th.MinGaps {
		out = append(out, fmt.Sprintf(
			"Insufficient gaps for meaningful analysis (%d < %d)", r.GapCount, th.MinGaps))
	}
	if r.GapCount == 0 {
		return out
	}

	switch {
	case r.Yield.Ratio < th.LowYield:
		out = append(out, fmt.Sprintf(
			"Low gap yield (%.0f%%): refine detection criteria to cut noise from reviewer passes",
			r.Yield.Ratio*100))
	case r.Yield.Ratio > th.HighYield:
		out = append(out, fmt.Sprintf(
			"Gap detection is well-calibrated: %.0f%% of suggested gaps were accepted",
			r.Yield.Ratio*100))
	}

	if best, worst, ok := sourceSpread(r.BySource, th.MinSourceSamples); ok {
		if best.rate-worst.rate >= th.SourceGapDelta {
			out = append(out, fmt.Sprintf(
				"%s gaps are accepted far more often than %s gaps (%.0f%% vs %.0f%%)",
				best.group, worst.group, best.rate*100, worst.rate*100))
		}
	}

	if r.Evidence.Rate < th.LowEvidenceRate {
		out = append(out, fmt.Sprintf(
			"Only %.0f%% of gaps carry evidence: improve substantiation (related ACs, concrete suggestions)",
			r.Evidence.Rate*100))
	}

	resolutionRate := safeRatio(r.Resolution.ResolvedCount, r.GapCount)
	if r.Resolution.ResolvedCount >= 1 && resolutionRate < th.LowResolution {
		out = append(out, fmt.Sprintf(
			"Gap backlog accumulating: only %.0f%% of gaps reach resolution", resolutionRate*100))
	}

	if avg := r.Resolution.ByCategory[CategoryBlocking]; avg != nil {
		days := avg.Hours() / 24
		if days > th.BlockingDays {
			out = append(out, fmt.Sprintf(
				"mvp_blocking gaps take %.1f days to resolve on average (threshold %.0f)",
				days, th.BlockingDays))
		}
	}

	return out
}

type sourceRate struct {
	group SourceGroup
	rate  float64
}

// sourceSpread finds the best and worst acceptance rates among source
// groups with enough samples to matter. Iteration order is pinned by
// sorting group names so ties break deterministically.
func sourceSpread(bySource map[SourceGroup]SourceStats, minSamples int) (best, worst sourceRate, ok bool) {
	var groups []SourceGroup
	for grp, st := range bySource {
		if st.Total >= minSamples {
			groups = append(groups, grp)
		}
	}
	if len(groups) < 2 {
		return best, worst, false
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	best = sourceRate{group: groups[0], rate: bySource[groups[0]].Rate}
	worst = best
	for _, grp := range groups[1:] {
		rate := bySource[grp].Rate
		if rate > best.rate {
			best = sourceRate{group: grp, rate: rate}
		}
		if rate < worst.rate {
			worst = sourceRate{group: grp, rate: rate}
		}
	}
	return best, worst, true
}

// safeRatio divides without letting an empty denominator poison the
// result as NaN.
func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// meanDuration averages durations; nil for an empty list, never zero.
func meanDuration(ds []time.Duration) *time.Duration {
	if len(ds) == 0 {
		return nil
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	avg := sum / time.Duration(len(ds))
	return &avg
}
