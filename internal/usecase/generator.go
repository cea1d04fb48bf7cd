package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/walletcase/internal/ai"
	"github.com/KaramelBytes/walletcase/internal/analysis"
	"github.com/KaramelBytes/walletcase/internal/dataset"
	"github.com/KaramelBytes/walletcase/internal/utils"
)

// ErrEmptyDataset is returned when the CSV has a header but no data rows.
var ErrEmptyDataset = errors.New("CSV file is empty or invalid")

// Sampling defaults used by the gemini runtime when nothing is configured.
const (
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.7
	DefaultTopK        = 40
	DefaultTopP        = 0.95
)

// Options controls the model call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopK        int
	TopP        float64
}

// Generator runs the parse, analyze, prompt, generate, extract pipeline.
type Generator struct {
	runtime ai.Runtime
	opts    Options
	log     *slog.Logger
}

// NewGenerator returns a Generator. rt may be nil when only Prepare is used.
func NewGenerator(rt ai.Runtime, opts Options, log *slog.Logger) *Generator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{runtime: rt, opts: opts, log: log}
}

// Outcome carries everything one pipeline run produced.
type Outcome struct {
	Dataset   *dataset.Dataset
	Analysis  *analysis.Result
	Prompt    string
	UseCases  []UseCase
	Model     string
	RequestID string
	Usage     ai.Usage
}

// Prepare parses and analyzes data and builds the prompt without calling the
// model.
func (g *Generator) Prepare(data []byte, bc BusinessContext) (*Outcome, error) {
	ds, err := dataset.Parse(data)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	res := analysis.Analyze(ds)
	prompt, err := BuildPrompt(res, bc)
	if err != nil {
		return nil, err
	}
	return &Outcome{Dataset: ds, Analysis: res, Prompt: prompt, Model: g.opts.Model}, nil
}

// Generate runs the full pipeline and returns the parsed use cases.
func (g *Generator) Generate(ctx context.Context, data []byte, bc BusinessContext) (*Outcome, error) {
	if g.runtime == nil {
		return nil, errors.New("no AI runtime configured")
	}
	out, err := g.Prepare(data, bc)
	if err != nil {
		return nil, err
	}
	g.log.Debug("dataset analyzed",
		"rows", out.Dataset.Len(),
		"columns", len(out.Dataset.Header),
		"insights", len(out.Analysis.Patterns.Insights))
	g.log.Info("calling model",
		"model", g.opts.Model,
		"prompt_chars", len(out.Prompt),
		"prompt_tokens_est", utils.CountTokens(out.Prompt))

	resp, err := g.runtime.Generate(ctx, ai.GenerateRequest{
		Model:       g.opts.Model,
		Messages:    []ai.Message{{Role: "user", Content: out.Prompt}},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
		TopK:        g.opts.TopK,
		TopP:        g.opts.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("generate use cases: %w", err)
	}
	out.RequestID = resp.RequestID
	out.Usage = resp.Usage
	if resp.Model != "" {
		out.Model = resp.Model
	}

	text := resp.Text()
	ucs, err := ParseUseCases(text)
	if err != nil {
		g.log.Warn("model output held no use cases",
			"request_id", resp.RequestID,
			"preview", utils.TruncateToTokenLimit(text, 50))
		return nil, err
	}
	out.UseCases = ucs
	g.log.Info("use cases generated", "count", len(ucs), "request_id", resp.RequestID)
	return out, nil
}
