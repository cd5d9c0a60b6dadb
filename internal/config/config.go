// Package config handles configuration loading and management for claimflow.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Oracle names accepted by intake.oracle.
const (
	OracleRules     = "rules"
	OracleAnthropic = "anthropic"
)

// Config holds all configuration for claimflow.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	History   HistoryConfig   `mapstructure:"history"`
	Store     StoreConfig     `mapstructure:"store"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// IntakeConfig controls the intake conversation.
type IntakeConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
	// Oracle is "rules" or "anthropic".
	Oracle string `mapstructure:"oracle"`
}

// HistoryConfig controls the claim history fraud checks.
type HistoryConfig struct {
	Lookback  time.Duration `mapstructure:"lookback"`
	Threshold int           `mapstructure:"threshold"`
}

// StoreConfig locates the relational claims database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RetrievalConfig locates the policy document store and its embedder.
type RetrievalConfig struct {
	Path string `mapstructure:"path"`
	// EmbedProvider is "none", "ollama" or "openai".
	EmbedProvider string `mapstructure:"embed_provider"`
	EmbedModel    string `mapstructure:"embed_model"`
	OllamaHost    string `mapstructure:"ollama_host"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
}

// ArchiveConfig locates the finalized session archive.
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// RulesConfig points at an optional rule-table override file.
type RulesConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// SessionConfig controls the in-memory session registry.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CLAIMFLOW_*)
// 2. Project config (.claimflow.yaml in current directory or parent)
// 3. User config (~/.config/claimflow/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CLAIMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("retrieval.openai_api_key", "OPENAI_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Retrieval.OpenAIAPIKey = os.ExpandEnv(cfg.Retrieval.OpenAIAPIKey)
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Retrieval.Path = expandHome(cfg.Retrieval.Path)
	cfg.Archive.Path = expandHome(cfg.Archive.Path)
	cfg.Rules.Path = expandHome(cfg.Rules.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Intake.Oracle {
	case OracleRules, OracleAnthropic:
	default:
		return fmt.Errorf("intake.oracle: unknown oracle %q", c.Intake.Oracle)
	}
	switch c.Retrieval.EmbedProvider {
	case "", "none", "ollama", "openai":
	default:
		return fmt.Errorf("retrieval.embed_provider: unknown provider %q", c.Retrieval.EmbedProvider)
	}
	if c.Intake.MaxTurns <= 0 {
		return fmt.Errorf("intake.max_turns must be positive, got %d", c.Intake.MaxTurns)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))
	for key, value := range Settings(cfg) {
		v.Set(key, value)
	}
	return v.WriteConfig()
}

// Settings flattens cfg into dotted keys. The API keys are included as
// stored, so callers displaying them must mask them.
func Settings(cfg *Config) map[string]any {
	return map[string]any{
		"anthropic.api_key":        cfg.Anthropic.APIKey,
		"anthropic.model":          cfg.Anthropic.Model,
		"anthropic.use_bedrock":    cfg.Anthropic.UseBedrock,
		"anthropic.aws_region":     cfg.Anthropic.AWSRegion,
		"anthropic.aws_profile":    cfg.Anthropic.AWSProfile,
		"intake.max_turns":         cfg.Intake.MaxTurns,
		"intake.oracle":            cfg.Intake.Oracle,
		"history.lookback":         cfg.History.Lookback.String(),
		"history.threshold":        cfg.History.Threshold,
		"store.path":               cfg.Store.Path,
		"retrieval.path":           cfg.Retrieval.Path,
		"retrieval.embed_provider": cfg.Retrieval.EmbedProvider,
		"retrieval.embed_model":    cfg.Retrieval.EmbedModel,
		"retrieval.ollama_host":    cfg.Retrieval.OllamaHost,
		"retrieval.openai_api_key": cfg.Retrieval.OpenAIAPIKey,
		"archive.path":             cfg.Archive.Path,
		"rules.path":               cfg.Rules.Path,
		"rules.watch":              cfg.Rules.Watch,
		"session.ttl":              cfg.Session.TTL.String(),
		"session.cleanup_interval": cfg.Session.CleanupInterval.String(),
		"log.level":                cfg.Log.Level,
		"log.file":                 cfg.Log.File,
	}
}

// With returns a copy of cfg with one dotted key set from its string
// form. The result is validated.
func With(cfg *Config, key, value string) (*Config, error) {
	settings := Settings(cfg)
	key = strings.ToLower(key)
	if _, ok := settings[key]; !ok {
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	v.Set(key, value)
	return unmarshal(v)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	d := Default()
	for key, value := range Settings(d) {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for claimflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "claimflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "claimflow")
	}
	return filepath.Join(home, ".config", "claimflow")
}

// findProjectConfig searches for .claimflow.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".claimflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// DataDir returns ~/.claimflow, where the databases live by default.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claimflow"
	}
	return filepath.Join(home, ".claimflow")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Default returns a Config with default values.
func Default() *Config {
	dir := DataDir()
	return &Config{
		Intake: IntakeConfig{
			MaxTurns: 10,
			Oracle:   OracleRules,
		},
		History: HistoryConfig{
			Lookback:  365 * 24 * time.Hour,
			Threshold: 3,
		},
		Store:     StoreConfig{Path: filepath.Join(dir, "claims.db")},
		Retrieval: RetrievalConfig{Path: filepath.Join(dir, "policies.db"), EmbedProvider: "none"},
		Archive:   ArchiveConfig{Path: filepath.Join(dir, "archive.db")},
		Session: SessionConfig{
			TTL:             time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}
