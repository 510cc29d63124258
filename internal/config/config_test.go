package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.ArtifactsDir)
	assert.Equal(t, "https://localhost:3000", cfg.Target.BaseURL)
	assert.Equal(t, "FORMBRICKS_API_KEY", cfg.Target.APIKeyEnv)
	assert.Equal(t, 30*time.Second, cfg.Target.Timeout)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 0.8, cfg.LLM.Temperature)
	assert.Equal(t, 10, cfg.Generate.Accounts)
	assert.Equal(t, 3, cfg.Generate.MaxRepairs)
	assert.Equal(t, 4, cfg.Seed.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Seed.InitialBackoff)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{
		"target": {"base_url": "http://forms.local:8080/", "timeout": "5s"},
		"llm": {"provider": "Gemini", "model": "gemini-2.0-flash"},
		"generate": {"accounts": 3}
	}`), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	v.SetEnvPrefix("FORMSEED")
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	t.Setenv("FORMSEED_SEED_MAX_ATTEMPTS", "7")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "http://forms.local:8080", cfg.Target.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Target.Timeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Generate.Accounts)
	assert.Equal(t, 5, cfg.Generate.Surveys)
	assert.Equal(t, 7, cfg.Seed.MaxAttempts)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"provider":    func(c *Config) { c.LLM.Provider = "clippy" },
		"base url":    func(c *Config) { c.Target.BaseURL = "localhost" },
		"counts":      func(c *Config) { c.Generate.Surveys = -1 },
		"concurrency": func(c *Config) { c.Seed.Concurrency = 0 },
		"attempts":    func(c *Config) { c.Seed.MaxAttempts = 0 },
		"artifacts":   func(c *Config) { c.ArtifactsDir = "" },
		"timeout":     func(c *Config) { c.Target.Timeout = 0 },
		"max repairs": func(c *Config) { c.Generate.MaxRepairs = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadFrom(viper.New())
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecretsFromEnv(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	t.Setenv("FORMBRICKS_API_KEY", "")
	_, err = cfg.APIKey()
	assert.Error(t, err)

	t.Setenv("FORMBRICKS_API_KEY", "fbk_123")
	t.Setenv("FORMBRICKS_ENVIRONMENT_ID", "env_1")
	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "fbk_123", key)
	env, err := cfg.EnvironmentID()
	require.NoError(t, err)
	assert.Equal(t, "env_1", env)

	key, err = cfg.LLMAPIKey()
	require.NoError(t, err)
	assert.Empty(t, key, "ollama needs no key")

	cfg.LLM.Provider = "gemini"
	t.Setenv("GEMINI_API_KEY", "")
	_, err = cfg.LLMAPIKey()
	assert.Error(t, err)
}

func TestExplicitSecretsWin(t *testing.T) {
	t.Setenv("FORMBRICKS_API_KEY", "from_env")
	t.Setenv("FORMBRICKS_ENVIRONMENT_ID", "")

	v := viper.New()
	v.Set("target.api_key", "from_flag")
	v.Set("target.environment_id", "env_flag")
	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "from_flag", key)
	env, err := cfg.EnvironmentID()
	require.NoError(t, err)
	assert.Equal(t, "env_flag", env)
}

func TestInitializeProject(t *testing.T) {
	tempDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(originalDir)
	require.NoError(t, os.Chdir(tempDir))

	assert.False(t, IsInitialized())
	require.NoError(t, InitializeProject())
	assert.True(t, IsInitialized())

	_, err = os.Stat(filepath.Join(tempDir, "data"))
	assert.NoError(t, err, "artifacts directory was not created")

	v := viper.New()
	v.SetConfigFile(filepath.Join(tempDir, FileName))
	require.NoError(t, v.ReadInConfig())
	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)

	assert.Error(t, InitializeProject(), "second initialization should fail")
}
