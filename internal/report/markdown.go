package report

import (
	"fmt"
	"strings"
)

// Markdown renders the run as a shareable document. Diagrams are emitted as
// mermaid code blocks for renderers that support them.
func (r *Run) Markdown() string {
	var b strings.Builder
	b.WriteString("# Digital Wallet Use Cases\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", r.ID)
	fmt.Fprintf(&b, "- Generated: %s\n", r.CreatedAt.Format("2006-01-02 15:04 MST"))
	if r.Source != "" {
		fmt.Fprintf(&b, "- Source: %s (%d rows)\n", r.Source, r.Rows)
	}
	if r.Model != "" {
		model := r.Model
		if r.Provider != "" {
			model = r.Provider + "/" + model
		}
		fmt.Fprintf(&b, "- Model: %s\n", model)
	}
	b.WriteString("\n")

	if r.Context.Problem != "" || r.Context.Scenario != "" {
		b.WriteString("## Business Context\n\n")
		if r.Context.Problem != "" {
			fmt.Fprintf(&b, "**Problem:** %s\n\n", r.Context.Problem)
		}
		if r.Context.Scenario != "" {
			fmt.Fprintf(&b, "**Scenario:** %s\n\n", r.Context.Scenario)
		}
	}

	if len(r.Patterns.Insights) > 0 {
		b.WriteString("## Key Insights\n\n")
		for _, in := range r.Patterns.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Use Cases (%d)\n", len(r.UseCases))
	for i, uc := range r.UseCases {
		fmt.Fprintf(&b, "\n### %d. %s\n\n", i+1, uc.Title)
		if uc.Priority != "" {
			fmt.Fprintf(&b, "**Priority:** %s\n\n", uc.Priority)
		}
		if uc.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", uc.Description)
		}
		if uc.BusinessImpact != "" {
			fmt.Fprintf(&b, "**Business impact:** %s\n\n", uc.BusinessImpact)
		}
		if uc.DataPatterns != "" {
			fmt.Fprintf(&b, "**Data patterns:** %s\n\n", uc.DataPatterns)
		}
		if d := strings.TrimSpace(uc.MermaidDiagram); d != "" {
			fmt.Fprintf(&b, "```mermaid\n%s\n```\n", d)
		}
	}
	return b.String()
}
