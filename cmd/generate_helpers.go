package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/KaramelBytes/walletcase/internal/ai"
	cfgpkg "github.com/KaramelBytes/walletcase/internal/config"
	"github.com/KaramelBytes/walletcase/internal/report"
	"github.com/KaramelBytes/walletcase/internal/usecase"
	"github.com/KaramelBytes/walletcase/internal/utils"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
	TimeoutSec   int
}

// resolveProvider normalizes the provider name, falling back to config and
// then gemini.
func resolveProvider(cfg *cfgpkg.Global, flag string) string {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && cfg != nil {
		name = cfg.Provider
	}
	switch name {
	case "":
		return ai.ProviderGemini
	case ai.ProviderLocal:
		return ai.ProviderOllama
	case "google":
		return ai.ProviderGemini
	}
	return name
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 120 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}
	if opts.TimeoutSec > 0 {
		httpTimeout = time.Duration(opts.TimeoutSec) * time.Second
	}

	providerName := resolveProvider(cfg, opts.ProviderFlag)
	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	switch providerName {
	case ai.ProviderGemini:
		if cfg != nil {
			rc.APIKey = cfg.APIKey
			rc.BaseURL = cfg.BaseURL
		}
	case ai.ProviderOpenRouter:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if cfg != nil {
			if rc.APIKey == "" {
				rc.APIKey = cfg.APIKey
			}
			rc.BaseURL = cfg.BaseURL
		}
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = defaultOllamaHost
		}
		rc.Host = host
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (available: %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil {
		if m := cfg.ModelFor(provider); m != "" {
			return m
		}
	}
	if provider == ai.ProviderGemini {
		return ai.DefaultGeminiModel
	}
	return ""
}

// explainGenerateError turns typed runtime errors into actionable messages.
func explainGenerateError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		if provider == ai.ProviderOpenRouter {
			return fmt.Errorf("no API key: set OPENROUTER_API_KEY or 'walletcase config set api_key <key>': %w", err)
		}
		return fmt.Errorf("no API key: set GEMINI_API_KEY (env or .env) or 'walletcase config set api_key <key>': %w", err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (--ollama-host or config 'ollama_host'). Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check your API key (~/.walletcase/config.yaml or GEMINI_API_KEY): %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model: %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with --model or 'walletcase config set model': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller --max-tokens or a different model: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	case errors.Is(err, ai.ErrNoCandidates):
		return fmt.Errorf("model returned no candidates; the prompt may have been blocked: %w", err)
	case errors.Is(err, usecase.ErrNoUseCases):
		return fmt.Errorf("model reply held no parseable use cases, try again or raise --max-tokens: %w", err)
	}
	return err
}

// renderUseCases prints a compact table of the generated use cases.
func renderUseCases(w io.Writer, ucs []usecase.UseCase) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Priority", "Business Impact"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 40},
		{Number: 4, WidthMax: 60},
	})
	for i, uc := range ucs {
		t.AppendRow(table.Row{i + 1, uc.Title, priorityColor(uc.Priority).Sprint(uc.Priority), string(uc.BusinessImpact)})
	}
	t.Render()
}

func priorityColor(p string) text.Colors {
	switch p {
	case usecase.PriorityHigh:
		return text.Colors{text.FgRed, text.Bold}
	case usecase.PriorityMedium:
		return text.Colors{text.FgYellow}
	case usecase.PriorityLow:
		return text.Colors{text.FgGreen}
	}
	return text.Colors{}
}

type outputOptions struct {
	Path   string
	Format string
	Quiet  bool
	Writer io.Writer
}

// writeRunOutput saves run to opts.Path as markdown or json.
func writeRunOutput(run *report.Run, opts outputOptions) error {
	if opts.Path == "" {
		return nil
	}
	var data []byte
	switch strings.ToLower(opts.Format) {
	case "", "markdown", "md":
		data = []byte(run.Markdown())
	case "json":
		b, err := utils.PrettyJSON(run)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		data = b
	default:
		return fmt.Errorf("unsupported --format: %s (use markdown|json)", opts.Format)
	}
	if err := utils.SafeWriteFile(opts.Path, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet && opts.Writer != nil {
		fmt.Fprintf(opts.Writer, "\n💾 Saved output to %s\n", opts.Path)
	}
	return nil
}
