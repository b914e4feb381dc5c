package pipeline

// ReleaseContext is the run-scoped state shared by every gate and message.
type ReleaseContext struct {
	OldVersion  string
	Version     string
	Author      string
	Coverage    *float64
	MinCoverage int
}

// Values returns the message placeholders. An unmeasured coverage is nil so
// it renders as an empty string.
func (r *ReleaseContext) Values() map[string]any {
	values := map[string]any{
		"old_version":  r.OldVersion,
		"version":      r.Version,
		"author":       r.Author,
		"coverage":     nil,
		"min_coverage": r.MinCoverage,
	}
	if r.Coverage != nil {
		values["coverage"] = *r.Coverage
	}
	return values
}
