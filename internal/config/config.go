// Package config loads guardians settings from guardians.yaml and
// GUARDIANS_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr       string         `mapstructure:"listen_addr" yaml:"listen_addr"`
	SampleIntervalMs int            `mapstructure:"sample_interval_ms" yaml:"sample_interval_ms"`
	Provider         ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Actions          ActionsConfig  `mapstructure:"actions" yaml:"actions"`
	History          HistoryConfig  `mapstructure:"history" yaml:"history"`
	Log              LogConfig      `mapstructure:"log" yaml:"log"`
	Auth             AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Security         SecurityConfig `mapstructure:"security" yaml:"security"`
}

type ProviderConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	ExeCacheSize int    `mapstructure:"exe_cache_size" yaml:"exe_cache_size"`
	ProcRoot     string `mapstructure:"proc_root" yaml:"proc_root,omitempty"`
}

type ActionsConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Workers        int `mapstructure:"workers" yaml:"workers"`
	QueueSize      int `mapstructure:"queue_size" yaml:"queue_size"`
}

type HistoryConfig struct {
	Points int `mapstructure:"points" yaml:"points"`
}

type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Level  string `mapstructure:"level" yaml:"level"`
}

type AuthConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	SecretKey        string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	TokenExpiryHours int    `mapstructure:"token_expiry_hours" yaml:"token_expiry_hours"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	IPWhitelist    []string `mapstructure:"ip_whitelist" yaml:"ip_whitelist"`
}

func Default() *Config {
	return &Config{
		ListenAddr:       ":8080",
		SampleIntervalMs: 1000,
		Provider:         ProviderConfig{Backend: "gopsutil", ExeCacheSize: 4096},
		Actions:          ActionsConfig{TimeoutSeconds: 10, Workers: 2, QueueSize: 16},
		History:          HistoryConfig{Points: 60},
		Log:              LogConfig{Format: "text", Level: "info"},
		Auth:             AuthConfig{Enabled: true, TokenExpiryHours: 90 * 24},
		Security:         SecurityConfig{AllowedOrigins: []string{"*"}},
	}
}

// SampleInterval is the sampling period as a duration
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

// ActionTimeout bounds every control call
func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.Actions.TimeoutSeconds) * time.Second
}

// TokenExpiry is the lifetime of issued auth tokens
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.Auth.TokenExpiryHours) * time.Hour
}

// Load reads cfgFile, or guardians.yaml from the config search path when
// cfgFile is empty. A missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("guardians")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GUARDIANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("sample_interval_ms", cfg.SampleIntervalMs)
	v.SetDefault("provider.backend", cfg.Provider.Backend)
	v.SetDefault("provider.exe_cache_size", cfg.Provider.ExeCacheSize)
	v.SetDefault("provider.proc_root", cfg.Provider.ProcRoot)
	v.SetDefault("actions.timeout_seconds", cfg.Actions.TimeoutSeconds)
	v.SetDefault("actions.workers", cfg.Actions.Workers)
	v.SetDefault("actions.queue_size", cfg.Actions.QueueSize)
	v.SetDefault("history.points", cfg.History.Points)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("auth.enabled", cfg.Auth.Enabled)
	v.SetDefault("auth.secret_key", cfg.Auth.SecretKey)
	v.SetDefault("auth.token_expiry_hours", cfg.Auth.TokenExpiryHours)
	v.SetDefault("security.allowed_origins", cfg.Security.AllowedOrigins)
	v.SetDefault("security.ip_whitelist", cfg.Security.IPWhitelist)
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "guardians")
}
