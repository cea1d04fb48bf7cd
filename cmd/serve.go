package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/walletcase/internal/ai"
	"github.com/KaramelBytes/walletcase/internal/report"
	"github.com/KaramelBytes/walletcase/internal/server"
	"github.com/KaramelBytes/walletcase/internal/usecase"
)

var (
	servePort       int
	serveProvider   string
	serveModel      string
	serveOllamaHost string
	serveNoSave     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload API",
	Long: `Start the HTTP API. POST a multipart form with a csvFile part (and optional
businessProblem and businessScenario fields) to /api/upload to receive the
parsed rows, the analysis summary and the generated use cases.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		// request and pipeline logs are the server's output
		setupLogger(slog.LevelInfo)
		runtime, provider, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: serveProvider,
			OllamaHost:   serveOllamaHost,
		})
		if err != nil {
			return err
		}
		model := selectModel(cfg, provider, serveModel)
		if model == "" {
			return fmt.Errorf("no model configured for provider %s: pass --model or 'walletcase config set model <name>'", provider)
		}
		if provider == ai.ProviderGemini && cfg.APIKey == "" {
			logger.Warn("GEMINI_API_KEY is not set; /api/upload will answer 401 until it is")
		}

		gen := usecase.NewGenerator(runtime, usecase.Options{
			Model:       model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopK:        cfg.TopK,
			TopP:        cfg.TopP,
		}, logger)

		var store *report.Store
		if cfg.SaveRuns && !serveNoSave {
			store = report.NewStore(cfg.RunsDir)
		}
		port := cfg.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		env := os.Getenv("NODE_ENV")
		if v := os.Getenv("WALLETCASE_ENV"); v != "" {
			env = v
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving on :%d using %s/%s\n", port, provider, model)
		return server.New(server.Config{
			Generator:      gen,
			Store:          store,
			Provider:       provider,
			Port:           port,
			AllowedOrigins: cfg.AllowedOrigins,
			MaxUploadMB:    cfg.MaxUploadMB,
			Env:            env,
			Logger:         logger,
		}).Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "listen port (default from config or PORT)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "AI provider: gemini|openrouter|ollama (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model name (default from config or provider)")
	serveCmd.Flags().StringVar(&serveOllamaHost, "ollama-host", "", "Ollama host URL (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSave, "no-save", false, "do not record runs in history")
}
