// Package analysis derives a deterministic statistical picture of a wallet
// transaction dataset: per-column profiles, role-specific aggregates and a
// short list of insights, plus a text summary for prompting.
//
// Nothing here performs I/O or keeps state between calls.
package analysis

import "github.com/KaramelBytes/walletcase/internal/dataset"

// Result bundles the analyzer outputs for one dataset.
type Result struct {
	Summary  string          `json:"summary"`
	Patterns PatternReport   `json:"patterns"`
	Profiles []ColumnProfile `json:"profiles,omitempty"`
}

// Analyze profiles ds and detects role patterns. An empty dataset yields
// NoDataSummary and an empty report.
func Analyze(ds *dataset.Dataset) *Result {
	if ds.Len() == 0 {
		return &Result{Summary: NoDataSummary, Patterns: emptyReport()}
	}
	profiles := ProfileColumns(ds)
	return &Result{
		Summary:  Summary(ds, profiles),
		Patterns: DetectPatterns(ds),
		Profiles: profiles,
	}
}
