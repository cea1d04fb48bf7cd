package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const dirName = ".walletcase"

// Global configuration structure.
type Global struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	// BaseURL overrides the hosted provider API root.
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	TopK        int     `mapstructure:"top_k" yaml:"top_k"`
	TopP        float64 `mapstructure:"top_p" yaml:"top_p"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP server
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Run history
	RunsDir  string `mapstructure:"runs_dir" yaml:"runs_dir"`
	SaveRuns bool   `mapstructure:"save_runs" yaml:"save_runs"`
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"provider", "model", "api_key", "base_url", "max_tokens", "temperature", "top_k", "top_p",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "port", "allowed_origins", "max_upload_mb", "runs_dir", "save_runs",
}

// Default models per provider, used when model is unset.
var defaultModels = map[string]string{
	"gemini":     "gemini-1.5-flash",
	"openrouter": "google/gemini-flash-1.5",
	"ollama":     "llama3.1",
	"local":      "llama3.1",
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.walletcase/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold an API key.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("WALLETCASE")
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "WALLETCASE_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("port", "WALLETCASE_PORT", "PORT")

	v.SetDefault("provider", "gemini")
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("max_tokens", 8192)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("top_k", 40)
	v.SetDefault("top_p", 0.95)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("port", 5000)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("runs_dir", "")
	v.SetDefault("save_runs", true)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.RunsDir == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		c.RunsDir = filepath.Join(dir, "runs")
	}
	return &c, nil
}

// ModelFor returns the configured model, or the default for provider when
// none is set.
func (c *Global) ModelFor(provider string) string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[provider]
}

// Get returns the display value of key. The API key is masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "provider":
		return c.Provider, nil
	case "model":
		return c.Model, nil
	case "api_key":
		return Mask(c.APIKey), nil
	case "base_url":
		return c.BaseURL, nil
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens), nil
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', -1, 64), nil
	case "top_k":
		return strconv.Itoa(c.TopK), nil
	case "top_p":
		return strconv.FormatFloat(c.TopP, 'f', -1, 64), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "ollama_host":
		return c.OllamaHost, nil
	case "port":
		return strconv.Itoa(c.Port), nil
	case "allowed_origins":
		return strings.Join(c.AllowedOrigins, ","), nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	case "runs_dir":
		return c.RunsDir, nil
	case "save_runs":
		return strconv.FormatBool(c.SaveRuns), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses val for key and assigns it.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "provider":
		p := strings.ToLower(val)
		if _, ok := defaultModels[p]; !ok {
			return fmt.Errorf("invalid provider: %s (use gemini, openrouter or ollama)", val)
		}
		if p == "local" {
			p = "ollama"
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "api_key":
		c.APIKey = val
	case "base_url":
		c.BaseURL = strings.TrimRight(val, "/")
	case "max_tokens":
		return setInt(&c.MaxTokens, key, val, 1)
	case "temperature":
		return setFloat(&c.Temperature, key, val, 0, 2)
	case "top_k":
		return setInt(&c.TopK, key, val, 0)
	case "top_p":
		return setFloat(&c.TopP, key, val, 0, 1)
	case "http_timeout_sec":
		return setInt(&c.HTTPTimeoutSec, key, val, 1)
	case "retry_max_attempts":
		return setInt(&c.RetryMaxAttempts, key, val, 1)
	case "retry_base_delay_ms":
		return setInt(&c.RetryBaseDelayMs, key, val, 0)
	case "retry_max_delay_ms":
		return setInt(&c.RetryMaxDelayMs, key, val, 0)
	case "ollama_host":
		c.OllamaHost = val
	case "port":
		if err := setInt(&c.Port, key, val, 1); err != nil {
			return err
		}
		if c.Port > 65535 {
			return fmt.Errorf("invalid port: %d", c.Port)
		}
	case "allowed_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	case "max_upload_mb":
		return setInt(&c.MaxUploadMB, key, val, 1)
	case "runs_dir":
		c.RunsDir = val
	case "save_runs":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		c.SaveRuns = b
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, val string, minVal int) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < minVal {
		return fmt.Errorf("invalid int for %s: %v", key, val)
	}
	*dst = i
	return nil
}

func setFloat(dst *float64, key, val string, lo, hi float64) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < lo || f > hi {
		return fmt.Errorf("invalid float for %s: %v (want %g..%g)", key, val, lo, hi)
	}
	*dst = f
	return nil
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
