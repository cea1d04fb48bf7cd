package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/walletcase/internal/analysis"
)

const persona = "You are a business analyst specializing in digital wallet and fintech solutions for Nepal."

// BuildPrompt renders the generation prompt for an analyzed dataset.
func BuildPrompt(res *analysis.Result, bc BusinessContext) (string, error) {
	patterns, err := json.MarshalIndent(res.Patterns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal patterns: %w", err)
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString(" Analyze the provided transaction data patterns and generate 5-8 highly targeted business use cases")
	if bc.IsZero() {
		b.WriteString(" for this dataset.\n\n")
	} else {
		b.WriteString(" that directly address the business problem and scenario below.\n\n")
	}

	b.WriteString("DATA ANALYSIS:\n")
	b.WriteString(res.Summary)
	if !bc.IsZero() {
		b.WriteString("\n\nBusiness Context:\n")
		if p := strings.TrimSpace(bc.Problem); p != "" {
			fmt.Fprintf(&b, "Problem: %s\n", p)
		}
		if s := strings.TrimSpace(bc.Scenario); s != "" {
			fmt.Fprintf(&b, "Scenario: %s\n", s)
		}
	}

	b.WriteString("\n\nPATTERN ANALYSIS:\n")
	b.Write(patterns)
	b.WriteString("\n\n")

	steps := []string{
		"Review the detected patterns above (transaction, merchant, category, geographic and user).",
		"Generate use cases that build on the actual columns and relationships in the data.",
	}
	if p := strings.TrimSpace(bc.Problem); p != "" {
		steps = append(steps, fmt.Sprintf("Focus on solutions that directly address the stated business problem: %q", p))
	}
	if s := strings.TrimSpace(bc.Scenario); s != "" {
		steps = append(steps, fmt.Sprintf("Consider the business scenario: %q", s))
	}
	steps = append(steps,
		"Prefer use cases that can be implemented with the available columns.",
		"Use the listed insights to target each solution.",
	)
	b.WriteString("INSTRUCTIONS:\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	b.WriteString(`
REQUIREMENTS:
- Each use case must be grounded in specific patterns found in the data analysis
- Use cases must be practical for the Nepali market
- Consider the transaction, categorization, geographic, user and temporal patterns when designing solutions
- Reference the insights from the pattern analysis where they apply

Respond with ONLY a JSON array of objects with these fields:
{
  "title": "Use case title (based on data patterns)",
  "description": "How this use case uses the identified data patterns",
  "businessImpact": "Specific business benefits",
  "priority": "High/Medium/Low (based on data availability and business impact)",
  "dataPatterns": "The data patterns this use case relies on",
  "mermaidDiagram": "Complete Mermaid graph TD source showing actors, system boundaries, data stores and flows"
}
`)
	return b.String(), nil
}
