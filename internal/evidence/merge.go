package evidence

// Merge folds a newer partial bundle into an older one: acceptance
// criteria upsert by ac_id, record lists concatenate, optional sections
// take the newer value when set. Version keeps the higher of the two and
// Timestamp the newer, so merging never rewinds the ledger. This is the
// domain reducer the workflow's evidence channel is declared with.
func Merge(old, new Bundle) Bundle {
	out := bump(old)
	out.Version = maxInt(old.Version, new.Version)
	out.Timestamp = old.Timestamp
	if new.Timestamp.After(old.Timestamp) {
		out.Timestamp = new.Timestamp
	}
	if new.StoryID != "" {
		out.StoryID = new.StoryID
	}

	for _, ac := range new.ACs {
		found := false
		for i := range out.ACs {
			if out.ACs[i].ACID == ac.ACID {
				out.ACs[i] = ac
				found = true
				break
			}
		}
		if !found {
			out.ACs = append(out.ACs, ac)
		}
	}

	out.TouchedFiles = append(out.TouchedFiles, new.TouchedFiles...)
	out.Commands = append(out.Commands, new.Commands...)
	out.Endpoints = append(out.Endpoints, new.Endpoints...)
	out.NotableDecisions = append(out.NotableDecisions, new.NotableDecisions...)
	out.KnownDeviations = append(out.KnownDeviations, new.KnownDeviations...)

	if new.TokenSummary != nil {
		ts := *new.TokenSummary
		out.TokenSummary = &ts
	}
	if new.TestSummary != nil {
		ts := *new.TestSummary
		out.TestSummary = &ts
	}
	if new.E2E != nil {
		e2e := *new.E2E
		e2e.ConfigIssues = append([]string(nil), new.E2E.ConfigIssues...)
		out.E2E = &e2e
	}
	if new.Coverage != nil {
		c := *new.Coverage
		out.Coverage = &c
	}
	return out
}

// Delta returns an empty partial bundle positioned at b's version. Fold
// operations into the delta, then Merge it into the base: lists carry
// only the delta's additions, so merging never duplicates records the
// base already holds.
func Delta(b Bundle) Bundle {
	return Bundle{
		Schema:    SchemaVersion,
		StoryID:   b.StoryID,
		Version:   b.Version,
		Timestamp: timeNow(),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
