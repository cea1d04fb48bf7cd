package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/walletcase/internal/report"
	"github.com/KaramelBytes/walletcase/internal/usecase"
	"github.com/KaramelBytes/walletcase/internal/utils"
)

var (
	genProblem     string
	genScenario    string
	genProvider    string
	genModel       string
	genMaxTokens   int
	genTemperature float64
	genDryRun      bool
	genOutputPath  string
	genOutputFmt   string
	genNoSave      bool
	genQuiet       bool
	genOllamaHost  string
	genTimeoutSec  int
)

var generateCmd = &cobra.Command{
	Use:   "generate <file.csv>",
	Short: "Generate AI business use cases from a wallet transaction CSV",
	Long: `Parse and analyze the CSV, build the analyst prompt and ask the model for
business use cases. Use --dry-run to inspect the prompt without calling a model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		bc := usecase.BusinessContext{Problem: genProblem, Scenario: genScenario}
		w := cmd.OutOrStdout()

		provider := resolveProvider(cfg, genProvider)
		model := selectModel(cfg, provider, genModel)
		opts := usecase.Options{
			Model:       model,
			MaxTokens:   usecase.DefaultMaxTokens,
			Temperature: usecase.DefaultTemperature,
			TopK:        usecase.DefaultTopK,
			TopP:        usecase.DefaultTopP,
		}
		if cfg != nil {
			if cfg.MaxTokens > 0 {
				opts.MaxTokens = cfg.MaxTokens
			}
			opts.Temperature = cfg.Temperature
			opts.TopK = cfg.TopK
			opts.TopP = cfg.TopP
		}
		if cmd.Flags().Changed("max-tokens") && genMaxTokens > 0 {
			opts.MaxTokens = genMaxTokens
		}
		if cmd.Flags().Changed("temperature") {
			opts.Temperature = genTemperature
		}

		if genDryRun {
			out, err := usecase.NewGenerator(nil, opts, logger).Prepare(data, bc)
			if err != nil {
				return err
			}
			breakdown := utils.TokenBreakdown(map[string]string{
				"summary": out.Analysis.Summary,
				"prompt":  out.Prompt,
			})
			fmt.Fprintln(w, out.Prompt)
			fmt.Fprintf(w, "\n--- dry run: %d rows, %d insights, ~%d prompt tokens (summary ~%d); model %s/%s not called ---\n",
				out.Dataset.Len(), len(out.Analysis.Patterns.Insights), breakdown["prompt"], breakdown["summary"], provider, model)
			return nil
		}

		runtime, provider, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: genProvider,
			OllamaHost:   genOllamaHost,
			TimeoutSec:   genTimeoutSec,
		})
		if err != nil {
			return err
		}
		if model == "" {
			return fmt.Errorf("no model configured for provider %s: pass --model or 'walletcase config set model <name>'", provider)
		}

		if !genQuiet {
			fmt.Fprintf(w, "Generating use cases with %s/%s...\n", provider, model)
		}
		out, err := usecase.NewGenerator(runtime, opts, logger).Generate(context.Background(), data, bc)
		if err != nil {
			return explainGenerateError(err, provider, model)
		}

		run := report.NewRun(filepath.Base(path), provider, bc, out)
		if !genQuiet {
			if out.RequestID != "" {
				fmt.Fprintf(w, "Request ID: %s\n", out.RequestID)
			}
			fmt.Fprintf(w, "\n%s\n\n", out.Analysis.Summary)
			renderUseCases(w, out.UseCases)
			if out.Usage.TotalTokens > 0 {
				fmt.Fprintf(w, "Tokens: %d prompt + %d completion\n", out.Usage.PromptTokens, out.Usage.CompletionTokens)
			}
		}

		if !genNoSave && cfg != nil && cfg.SaveRuns {
			if err := report.NewStore(cfg.RunsDir).Save(run); err != nil {
				logger.Warn("could not save run", "error", err)
			} else if !genQuiet {
				fmt.Fprintf(w, "✓ Saved run %s (walletcase history show %s)\n", run.ShortID(), run.ShortID())
			}
		}

		if genOutputPath == "" && genQuiet {
			fmt.Fprint(w, run.Markdown())
			return nil
		}
		return writeRunOutput(run, outputOptions{
			Path:   genOutputPath,
			Format: genOutputFmt,
			Quiet:  genQuiet,
			Writer: w,
		})
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&genProblem, "problem", "", "business problem to focus the use cases on")
	generateCmd.Flags().StringVar(&genScenario, "scenario", "", "business scenario to consider")
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "AI provider: gemini|openrouter|ollama (default from config)")
	generateCmd.Flags().StringVar(&genModel, "model", "", "model name (default from config or provider)")
	generateCmd.Flags().IntVar(&genMaxTokens, "max-tokens", 0, "max output tokens (default from config)")
	generateCmd.Flags().Float64Var(&genTemperature, "temperature", usecase.DefaultTemperature, "sampling temperature")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "print the prompt and token estimate without calling the model")
	generateCmd.Flags().StringVarP(&genOutputPath, "output", "o", "", "write the result to a file")
	generateCmd.Flags().StringVar(&genOutputFmt, "format", "markdown", "output file format: markdown|json")
	generateCmd.Flags().BoolVar(&genNoSave, "no-save", false, "do not record the run in history")
	generateCmd.Flags().BoolVarP(&genQuiet, "quiet", "q", false, "print only the markdown report")
	generateCmd.Flags().StringVar(&genOllamaHost, "ollama-host", "", "Ollama host URL (default from config)")
	generateCmd.Flags().IntVar(&genTimeoutSec, "timeout-sec", 0, "HTTP timeout for the model call in seconds")
}
