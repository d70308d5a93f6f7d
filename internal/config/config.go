// Package config loads service configuration from the environment (and an
// optional .env file) into a validated Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported text-generation providers.
const (
	ProviderChat   = "chat"
	ProviderGemini = "gemini"
)

// Config is the full service configuration.
type Config struct {
	Port     string         `mapstructure:"port" validate:"required,numeric"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	LLM      LLMConfig      `mapstructure:"llm"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
}

// LogConfig controls the zerolog level.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
}

// StoreConfig points at the remote record store (the data CRUD service).
type StoreConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// LLMConfig configures the text-generation model used for structured extraction.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=chat gemini"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model" validate:"required"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// GCSConfig enables archiving of uploaded statements when Bucket is set.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// BigQueryConfig enables the ingestion-run audit table when ProjectID is set.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset" validate:"required_with=ProjectID"`
}

// Enabled reports whether run auditing is configured.
func (c BigQueryConfig) Enabled() bool {
	return c.ProjectID != ""
}

// envAliases maps config keys to the variable names used by earlier
// deployments of the service, checked after the canonical name.
var envAliases = map[string][]string{
	"store.url":    {"STORE_URL", "DATA_CRUD_SERVICE_URL"},
	"llm.base_url": {"LLM_BASE_URL", "GROQ_BASE_URL"},
	"llm.api_key":  {"LLM_API_KEY", "GROQ_API_KEY"},
	"llm.model":    {"LLM_MODEL"},
}

var validate = validator.New()

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: reading .env: %w", err)
	}
	return FromViper(viper.New())
}

// FromViper builds a Config from the given viper instance after installing
// defaults and environment bindings on it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config.FromViper: binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.FromViper: unmarshal: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config.FromViper: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8002")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.url", "")
	v.SetDefault("store.timeout", 30*time.Second)
	v.SetDefault("llm.provider", ProviderChat)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 12000)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "finance")
}
