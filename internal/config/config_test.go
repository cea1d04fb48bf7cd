package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at a fresh temp dir and
// clears the env vars Load consults.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	for _, k := range []string{"GEMINI_API_KEY", "WALLETCASE_API_KEY", "PORT", "WALLETCASE_PORT", "WALLETCASE_PROVIDER", "WALLETCASE_MAX_UPLOAD_MB"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini", c.Provider)
	assert.Equal(t, 8192, c.MaxTokens)
	assert.Equal(t, 0.7, c.Temperature)
	assert.Equal(t, 40, c.TopK)
	assert.Equal(t, 0.95, c.TopP)
	assert.Equal(t, 5000, c.Port)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, 10, c.MaxUploadMB)
	assert.True(t, c.SaveRuns)
	assert.Equal(t, filepath.Join(home, ".walletcase", "runs"), c.RunsDir)
	assert.Equal(t, "gemini-1.5-flash", c.ModelFor(c.Provider))
}

func TestLoadEnvAliasesAndDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\nPORT=7070\n"), 0o600))
	t.Setenv("WALLETCASE_PROVIDER", "OpenRouter")
	t.Cleanup(func() {
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("PORT")
	})

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", c.APIKey)
	assert.Equal(t, 7070, c.Port)
	assert.Equal(t, "openrouter", c.Provider)
}

func TestDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("GEMINI_API_KEY", "from-env")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.APIKey)
}

func TestSaveThenLoad(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("provider", "local"))
	require.NoError(t, c.Set("model", "llama3.1:8b"))
	require.NoError(t, c.Set("allowed_origins", "http://localhost:3000, https://app.example.com"))
	require.NoError(t, c.Set("max_upload_mb", "25"))
	require.NoError(t, Save(c, ""))

	again, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ollama", again.Provider)
	assert.Equal(t, "llama3.1:8b", again.ModelFor(again.Provider))
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, again.AllowedOrigins)
	assert.Equal(t, 25, again.MaxUploadMB)
}

func TestExplicitConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: ollama\nport: 8081\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Provider)
	assert.Equal(t, 8081, c.Port)

	// A missing explicit file falls back to defaults so `config set` can create it.
	c, err = Load(filepath.Join(dir, "new.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Provider)
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	for key, val := range map[string]string{
		"provider":    "bedrock",
		"temperature": "3",
		"top_p":       "x",
		"port":        "70000",
		"max_tokens":  "0",
		"save_runs":   "maybe",
		"nope":        "1",
	} {
		assert.Error(t, c.Set(key, val), key)
	}
}

func TestGetMasksKey(t *testing.T) {
	c := &Global{APIKey: "AIzaSyExample123"}
	v, err := c.Get("api_key")
	require.NoError(t, err)
	assert.Equal(t, "AIz****123", v)
	for _, k := range Keys {
		_, err := c.Get(k)
		assert.NoError(t, err, k)
	}
}
