package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	Port        string
	TokenSecret string
	TokenTTL    time.Duration
	Realtime    RealtimeConfig
}

// RealtimeConfig holds tunables for the real-time messaging layer. The same
// values drive the server hub and are the defaults for the client SDK.
type RealtimeConfig struct {
	Endpoint          string
	PingInterval      time.Duration
	ReconnectInterval time.Duration
	ReconnectAttempts int
	AckTimeout        time.Duration
	RefreshThreshold  time.Duration
}

// Load loads configuration from multiple sources with priority:
// 1. Command flags (applied via LoadWithOverrides)
// 2. Config file (./adpulse.toml or $XDG_CONFIG_HOME/adpulse/adpulse.toml)
// 3. Environment variables
func Load() (*Config, error) {
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, "", ""), nil
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(databaseURL, port string) (*Config, error) {
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, databaseURL, port), nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("adpulse")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	// Use XDG Base Directory specification
	// Manual implementation to support testing (xdg library caches at init)
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "adpulse"))
	}

	return v
}

func buildConfig(v *viper.Viper, overrideDatabaseURL, overridePort string) *Config {
	cfg := &Config{
		Port:     "3000",
		TokenTTL: time.Hour,
		Realtime: RealtimeConfig{
			Endpoint:          "/api/real-time",
			PingInterval:      30 * time.Second,
			ReconnectInterval: time.Second,
			ReconnectAttempts: 5,
			AckTimeout:        5 * time.Second,
			RefreshThreshold:  5 * time.Minute,
		},
	}

	// Apply config file values
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("token_secret") {
		cfg.TokenSecret = v.GetString("token_secret")
	}
	if v.IsSet("token_ttl") {
		cfg.TokenTTL = v.GetDuration("token_ttl")
	}
	if v.IsSet("realtime.endpoint") {
		cfg.Realtime.Endpoint = v.GetString("realtime.endpoint")
	}
	if v.IsSet("realtime.ping_interval") {
		cfg.Realtime.PingInterval = v.GetDuration("realtime.ping_interval")
	}
	if v.IsSet("realtime.reconnect_interval") {
		cfg.Realtime.ReconnectInterval = v.GetDuration("realtime.reconnect_interval")
	}
	if v.IsSet("realtime.reconnect_attempts") {
		cfg.Realtime.ReconnectAttempts = v.GetInt("realtime.reconnect_attempts")
	}
	if v.IsSet("realtime.ack_timeout") {
		cfg.Realtime.AckTimeout = v.GetDuration("realtime.ack_timeout")
	}
	if v.IsSet("realtime.refresh_threshold") {
		cfg.Realtime.RefreshThreshold = v.GetDuration("realtime.refresh_threshold")
	}

	// Environment fallback (only if not configured)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("ADPULSE_TOKEN_SECRET")
	}

	// Apply overrides (flags) last
	if overrideDatabaseURL != "" {
		cfg.DatabaseURL = overrideDatabaseURL
	}
	if overridePort != "" {
		cfg.Port = overridePort
	}

	return cfg
}
