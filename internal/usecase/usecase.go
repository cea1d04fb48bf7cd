// Package usecase turns an analyzed wallet dataset into AI-generated business
// use cases: it builds the prompt, calls a model runtime and recovers the
// JSON array from whatever text the model returns.
package usecase

import (
	"encoding/json"
	"strings"
)

// Priorities recognised by NormalizePriority.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// UseCase is one generated business proposal.
type UseCase struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	BusinessImpact FlexText `json:"businessImpact"`
	Priority       string   `json:"priority"`
	DataPatterns   FlexText `json:"dataPatterns"`
	MermaidDiagram string   `json:"mermaidDiagram"`
}

// BusinessContext is the optional framing supplied with an upload.
type BusinessContext struct {
	Problem  string `json:"businessProblem,omitempty"`
	Scenario string `json:"businessScenario,omitempty"`
}

// IsZero reports whether neither field is set.
func (c BusinessContext) IsZero() bool {
	return strings.TrimSpace(c.Problem) == "" && strings.TrimSpace(c.Scenario) == ""
}

// FlexText is a string that also accepts a JSON array of strings, which
// models sometimes return for list-like fields. Arrays are joined with ", ".
type FlexText string

func (f *FlexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*f = FlexText(strings.Join(list, ", "))
	return nil
}

// NormalizePriority maps loose priority labels ("high", "MEDIUM priority",
// "low - later") onto High, Medium or Low. Unrecognised values are returned
// trimmed but otherwise unchanged.
func NormalizePriority(p string) string {
	t := strings.TrimSpace(p)
	l := strings.ToLower(t)
	switch {
	case strings.HasPrefix(l, "high"), strings.HasPrefix(l, "critical"):
		return PriorityHigh
	case strings.HasPrefix(l, "med"):
		return PriorityMedium
	case strings.HasPrefix(l, "low"):
		return PriorityLow
	}
	return t
}
