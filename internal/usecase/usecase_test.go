package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/walletcase/internal/ai"
	"github.com/KaramelBytes/walletcase/internal/analysis"
	"github.com/KaramelBytes/walletcase/internal/dataset"
)

const walletCSV = `transaction_id,user_id,amount,merchant_name,category,city,date
t1,u1,100,Bhatbhateni,Grocery,Kathmandu,2024-01-01
t2,u1,250,Daraz,Shopping,Kathmandu,2024-01-02
t3,u2,80,Bhatbhateni,Grocery,Pokhara,2024-01-02
t4,u1,1200,NTC,Utilities,Kathmandu,2024-01-03
`

const oneUseCase = `[{"title":"Merchant cashback","description":"Target top merchants","businessImpact":"More volume","priority":"high","dataPatterns":["merchant","amount"],"mermaidDiagram":"graph TD\nA-->B"}]`

type fakeRuntime struct {
	text string
	err  error
	got  ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{
		Choices:   []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.text}}},
		RequestID: "req-1",
	}, nil
}

func TestParseUseCasesDirect(t *testing.T) {
	ucs, err := ParseUseCases(oneUseCase)
	require.NoError(t, err)
	require.Len(t, ucs, 1)
	assert.Equal(t, "Merchant cashback", ucs[0].Title)
	assert.Equal(t, PriorityHigh, ucs[0].Priority)
	assert.Equal(t, FlexText("merchant, amount"), ucs[0].DataPatterns)
}

func TestParseUseCasesFenced(t *testing.T) {
	text := "Here you go:\n```json\n" + oneUseCase + "\n```\nLet me know."
	ucs, err := ParseUseCases(text)
	require.NoError(t, err)
	assert.Len(t, ucs, 1)
}

func TestParseUseCasesArraySpan(t *testing.T) {
	text := "Sure! " + oneUseCase + " Hope this helps."
	ucs, err := ParseUseCases(text)
	require.NoError(t, err)
	assert.Equal(t, "Target top merchants", ucs[0].Description)
}

func TestParseUseCasesFenceWithNestedMermaidFence(t *testing.T) {
	inner := `[{"title":"A","description":"d","priority":"Low","mermaidDiagram":"` + "```mermaid\\ngraph TD\\nA-->B\\n```" + `"}]`
	text := "```json\n" + inner + "\n```"
	ucs, err := ParseUseCases(text)
	require.NoError(t, err)
	require.Len(t, ucs, 1)
	assert.Equal(t, "graph TD\nA-->B", ucs[0].MermaidDiagram)
}

func TestParseUseCasesFailures(t *testing.T) {
	for name, text := range map[string]string{
		"empty":       "",
		"prose":       "I cannot help with that.",
		"emptyArray":  "[]",
		"object":      `{"title":"x"}`,
		"blankEntry":  `[{"title":"","description":""}]`,
		"brokenFence": "```json\n[{\"title\": }]\n```",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUseCases(text)
			assert.ErrorIs(t, err, ErrNoUseCases)
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	cases := map[string]string{
		"high":            PriorityHigh,
		" HIGH priority ": PriorityHigh,
		"Medium":          PriorityMedium,
		"med":             PriorityMedium,
		"low - later":     PriorityLow,
		"P1":              "P1",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePriority(in), in)
	}
}

func TestBuildPromptIncludesContextAndPatterns(t *testing.T) {
	ds, err := dataset.Parse([]byte(walletCSV))
	require.NoError(t, err)
	res := analysis.Analyze(ds)

	prompt, err := BuildPrompt(res, BusinessContext{Problem: "Low merchant retention", Scenario: "Festival season"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, persona))
	assert.Contains(t, prompt, "DATA ANALYSIS:\n"+res.Summary)
	assert.Contains(t, prompt, "Business Context:\nProblem: Low merchant retention\nScenario: Festival season\n")
	patterns, err := json.MarshalIndent(res.Patterns, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, prompt, "PATTERN ANALYSIS:\n"+string(patterns))
	assert.Contains(t, prompt, `"Low merchant retention"`)
	assert.Contains(t, prompt, `"mermaidDiagram"`)
}

func TestBuildPromptWithoutContext(t *testing.T) {
	ds, err := dataset.Parse([]byte(walletCSV))
	require.NoError(t, err)
	prompt, err := BuildPrompt(analysis.Analyze(ds), BusinessContext{Problem: "  "})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "Business Context:")
	assert.NotContains(t, prompt, "stated business problem")
}

func TestBuildPromptWithHugeAmounts(t *testing.T) {
	ds, err := dataset.Parse([]byte("amount,merchant_name\n1e308,Daraz\n1e308,Daraz\n"))
	require.NoError(t, err)
	prompt, err := BuildPrompt(analysis.Analyze(ds), BusinessContext{})
	require.NoError(t, err)
	assert.Contains(t, prompt, `"averageAmount": 1e+308`)
}

func TestGeneratorGenerate(t *testing.T) {
	rt := &fakeRuntime{text: "```json\n" + oneUseCase + "\n```"}
	g := NewGenerator(rt, Options{Model: "gemini-1.5-flash", Temperature: DefaultTemperature, TopK: DefaultTopK, TopP: DefaultTopP}, nil)

	out, err := g.Generate(context.Background(), []byte(walletCSV), BusinessContext{Problem: "p"})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Dataset.Len())
	assert.Len(t, out.UseCases, 1)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, "gemini-1.5-flash", out.Model)

	assert.Equal(t, DefaultMaxTokens, rt.got.MaxTokens)
	assert.Equal(t, DefaultTopK, rt.got.TopK)
	require.Len(t, rt.got.Messages, 1)
	assert.Equal(t, out.Prompt, rt.got.Messages[0].Content)
}

func TestGeneratorErrors(t *testing.T) {
	t.Run("empty dataset", func(t *testing.T) {
		g := NewGenerator(&fakeRuntime{text: oneUseCase}, Options{Model: "m"}, nil)
		_, err := g.Generate(context.Background(), []byte("a,b\n"), BusinessContext{})
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})
	t.Run("malformed csv", func(t *testing.T) {
		g := NewGenerator(&fakeRuntime{text: oneUseCase}, Options{Model: "m"}, nil)
		_, err := g.Generate(context.Background(), []byte("a,b\n1,2,3\n"), BusinessContext{})
		var pe *dataset.ParseError
		assert.ErrorAs(t, err, &pe)
	})
	t.Run("runtime failure", func(t *testing.T) {
		boom := errors.New("boom")
		g := NewGenerator(&fakeRuntime{err: boom}, Options{Model: "m"}, nil)
		_, err := g.Generate(context.Background(), []byte(walletCSV), BusinessContext{})
		assert.ErrorIs(t, err, boom)
	})
	t.Run("auth failure stays detectable", func(t *testing.T) {
		g := NewGenerator(&fakeRuntime{err: ai.ErrMissingAPIKey}, Options{Model: "m"}, nil)
		_, err := g.Generate(context.Background(), []byte(walletCSV), BusinessContext{})
		assert.True(t, ai.IsAuthFailure(err))
	})
	t.Run("unparseable output", func(t *testing.T) {
		g := NewGenerator(&fakeRuntime{text: "no json here"}, Options{Model: "m"}, nil)
		_, err := g.Generate(context.Background(), []byte(walletCSV), BusinessContext{})
		assert.ErrorIs(t, err, ErrNoUseCases)
	})
	t.Run("no runtime", func(t *testing.T) {
		_, err := NewGenerator(nil, Options{}, nil).Generate(context.Background(), []byte(walletCSV), BusinessContext{})
		assert.Error(t, err)
	})
}

func TestPrepareSkipsModel(t *testing.T) {
	out, err := NewGenerator(nil, Options{Model: "m"}, nil).Prepare([]byte(walletCSV), BusinessContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Prompt)
	assert.Nil(t, out.UseCases)
}
