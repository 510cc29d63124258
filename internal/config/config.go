package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const FileName = "formseed.config.json"

// EnvKeyReplacer maps nested keys such as seed.max_attempts to SEED_MAX_ATTEMPTS.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	Version      string   `json:"version" mapstructure:"version"`
	ArtifactsDir string   `json:"artifacts_dir" mapstructure:"artifacts_dir"`
	ComposeFile  string   `json:"compose_file" mapstructure:"compose_file"`
	Target       Target   `json:"target" mapstructure:"target"`
	LLM          LLM      `json:"llm" mapstructure:"llm"`
	Generate     Generate `json:"generate" mapstructure:"generate"`
	Seed         Seed     `json:"seed" mapstructure:"seed"`
}

// Target describes the running application and its two API surfaces.
// Paths may contain an {environmentId} placeholder.
type Target struct {
	BaseURL            string        `json:"base_url" mapstructure:"base_url"`
	APIKeyEnv          string        `json:"api_key_env" mapstructure:"api_key_env"`
	EnvironmentIDEnv   string        `json:"environment_id_env" mapstructure:"environment_id_env"`
	AccountsPath       string        `json:"accounts_path" mapstructure:"accounts_path"`
	SurveysPath        string        `json:"surveys_path" mapstructure:"surveys_path"`
	ResponsesPath      string        `json:"responses_path" mapstructure:"responses_path"`
	Timeout            time.Duration `json:"timeout" mapstructure:"timeout"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	HealthPath         string        `json:"health_path" mapstructure:"health_path"`
	HealthTimeout      time.Duration `json:"health_timeout" mapstructure:"health_timeout"`

	// Explicit secrets, set from command-line flags; they win over the env vars.
	APIKey        string `json:"-" mapstructure:"api_key"`
	EnvironmentID string `json:"-" mapstructure:"environment_id"`
}

type LLM struct {
	Provider    string        `json:"provider" mapstructure:"provider"`
	Host        string        `json:"host" mapstructure:"host"`
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	Model       string        `json:"model" mapstructure:"model"`
	APIKeyEnv   string        `json:"api_key_env" mapstructure:"api_key_env"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	TopP        float64       `json:"top_p" mapstructure:"top_p"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

type Generate struct {
	Accounts           int   `json:"accounts" mapstructure:"accounts"`
	Surveys            int   `json:"surveys" mapstructure:"surveys"`
	ResponsesPerSurvey int   `json:"responses_per_survey" mapstructure:"responses_per_survey"`
	Concurrency        int   `json:"concurrency" mapstructure:"concurrency"`
	MaxRepairs         int   `json:"max_repairs" mapstructure:"max_repairs"`
	RandomSeed         int64 `json:"random_seed" mapstructure:"random_seed"`
}

type Seed struct {
	Concurrency    int           `json:"concurrency" mapstructure:"concurrency"`
	MaxAttempts    int           `json:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" mapstructure:"max_backoff"`
}

var defaults = map[string]any{
	"version":       "1",
	"artifacts_dir": "data",
	"compose_file":  "docker-compose.yml",

	"target.base_url":             "https://localhost:3000",
	"target.api_key_env":          "FORMBRICKS_API_KEY",
	"target.environment_id_env":   "FORMBRICKS_ENVIRONMENT_ID",
	"target.accounts_path":        "/api/v1/management/environments/{environmentId}/members",
	"target.surveys_path":         "/api/v1/management/surveys",
	"target.responses_path":       "/api/v1/client/{environmentId}/responses",
	"target.timeout":              "30s",
	"target.insecure_skip_verify": true,
	"target.health_path":          "/health",
	"target.health_timeout":       "120s",

	"llm.provider":    "ollama",
	"llm.host":        "http://localhost:11434",
	"llm.base_url":    "",
	"llm.model":       "llama3.2",
	"llm.api_key_env": "GEMINI_API_KEY",
	"llm.temperature": 0.8,
	"llm.top_p":       0.9,
	"llm.timeout":     "120s",

	"generate.accounts":             10,
	"generate.surveys":              5,
	"generate.responses_per_survey": 5,
	"generate.concurrency":          4,
	"generate.max_repairs":          3,

	"seed.concurrency":     4,
	"seed.max_attempts":    4,
	"seed.initial_backoff": "200ms",
	"seed.max_backoff":     "2s",
}

// SetDefaults registers every known key with v so that environment
// overrides resolve even when no config file is present.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Target.BaseURL = strings.TrimRight(cfg.Target.BaseURL, "/")
	cfg.LLM.Host = strings.TrimRight(cfg.LLM.Host, "/")
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider: %s. Supported providers: [ollama gemini]", c.LLM.Provider)
	}

	if c.ArtifactsDir == "" {
		return fmt.Errorf("artifacts_dir cannot be empty")
	}

	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("target.base_url is not a valid URL: %q", c.Target.BaseURL)
	}

	if c.Generate.Accounts < 0 || c.Generate.Surveys < 0 || c.Generate.ResponsesPerSurvey < 0 {
		return fmt.Errorf("generate counts cannot be negative")
	}
	if c.Generate.Concurrency < 1 || c.Seed.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.Generate.MaxRepairs < 0 {
		return fmt.Errorf("generate.max_repairs cannot be negative")
	}
	if c.Seed.MaxAttempts < 1 {
		return fmt.Errorf("seed.max_attempts must be at least 1")
	}
	if c.Target.Timeout <= 0 || c.LLM.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	return nil
}

// APIKey returns the explicit management API key, or else the value of the
// environment variable named by target.api_key_env.
func (c *Config) APIKey() (string, error) {
	if c.Target.APIKey != "" {
		return c.Target.APIKey, nil
	}
	key := os.Getenv(c.Target.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("API key not found in environment variable %s", c.Target.APIKeyEnv)
	}
	return key, nil
}

func (c *Config) EnvironmentID() (string, error) {
	if c.Target.EnvironmentID != "" {
		return c.Target.EnvironmentID, nil
	}
	id := os.Getenv(c.Target.EnvironmentIDEnv)
	if id == "" {
		return "", fmt.Errorf("environment ID not found in environment variable %s", c.Target.EnvironmentIDEnv)
	}
	return id, nil
}

// LLMAPIKey is only required by hosted providers.
func (c *Config) LLMAPIKey() (string, error) {
	if c.LLM.Provider == "ollama" {
		return "", nil
	}
	key := os.Getenv(c.LLM.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s API key not found in environment variable %s", c.LLM.Provider, c.LLM.APIKeyEnv)
	}
	return key, nil
}

func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.ArtifactsDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.ArtifactsDir, err)
	}
	return nil
}

// IsInitialized reports whether a config file exists in the working directory.
func IsInitialized() bool {
	_, err := os.Stat(FileName)
	return err == nil
}

// InitializeProject writes a config file holding every default and creates
// the artifacts directory. It refuses to overwrite an existing config.
func InitializeProject() error {
	if IsInitialized() {
		return fmt.Errorf("%s already exists", FileName)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("json")
	if err := v.SafeWriteConfigAs(FileName); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}

	cfg, err := LoadFrom(v)
	if err != nil {
		return err
	}
	return cfg.EnsureDirectories()
}
