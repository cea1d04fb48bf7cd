package usecase

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoUseCases means the model output held no usable use-case array.
var ErrNoUseCases = errors.New("failed to generate valid use cases from model response")

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
	arraySpan  = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
)

// ParseUseCases extracts the use-case array from model text. It tries the
// whole text, then the first fenced code block, then the widest [ {...} ]
// span. Entries with neither a title nor a description are dropped.
func ParseUseCases(text string) ([]UseCase, error) {
	for _, candidate := range candidates(text) {
		var out []UseCase
		if err := json.Unmarshal([]byte(candidate), &out); err != nil {
			continue
		}
		out = clean(out)
		if len(out) > 0 {
			return out, nil
		}
	}
	return nil, ErrNoUseCases
}

func candidates(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	out := []string{text}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		out = append(out, m[1])
	}
	if m := arraySpan.FindString(text); m != "" {
		out = append(out, m)
	}
	return out
}

func clean(in []UseCase) []UseCase {
	out := in[:0]
	for _, uc := range in {
		uc.Title = strings.TrimSpace(uc.Title)
		uc.Description = strings.TrimSpace(uc.Description)
		if uc.Title == "" && uc.Description == "" {
			continue
		}
		uc.Priority = NormalizePriority(uc.Priority)
		uc.MermaidDiagram = stripMermaidFence(uc.MermaidDiagram)
		out = append(out, uc)
	}
	return out
}

// stripMermaidFence removes a ```mermaid wrapper some models put inside the
// diagram field, so callers can fence it themselves.
func stripMermaidFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "mermaid")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
