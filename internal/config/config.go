// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN. Required by every command.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// MaxSessionsPerUser caps concurrently active sessions per staff member.
	MaxSessionsPerUser int `mapstructure:"MAX_SESSIONS_PER_USER"`
	// InactivityTimeoutMinutes ends a session left idle for this long.
	InactivityTimeoutMinutes int `mapstructure:"INACTIVITY_TIMEOUT_MINUTES"`
	// AbsoluteTimeoutMinutes is the hard ceiling on session lifetime from creation.
	AbsoluteTimeoutMinutes int `mapstructure:"ABSOLUTE_TIMEOUT_MINUTES"`
	// WarningThresholdMinutes controls when validate starts warning about imminent expiry.
	WarningThresholdMinutes int `mapstructure:"WARNING_THRESHOLD_MINUTES"`
	// EvictOldestOnOverflow terminates the least-recently-active session instead of rejecting a new login.
	EvictOldestOnOverflow bool `mapstructure:"EVICT_OLDEST_ON_OVERFLOW"`
	// SessionRetentionDays is how long terminated session rows are kept before the sweep purges them.
	SessionRetentionDays int `mapstructure:"SESSION_RETENTION_DAYS"`

	// HandoverTimeoutMinutes is how long a pending handover waits for the recipient.
	HandoverTimeoutMinutes int `mapstructure:"HANDOVER_TIMEOUT_MINUTES"`
	// AutomaticHandoverOnReLogin closes a lingering shift when the same user starts a new one.
	AutomaticHandoverOnReLogin bool `mapstructure:"AUTOMATIC_HANDOVER_ON_RELOGIN"`
	// PreserveAuxiliarySessionData copies donor session data to the recipient on accepted handovers.
	PreserveAuxiliarySessionData bool `mapstructure:"PRESERVE_AUX_SESSION_DATA"`

	// SweepSchedule is the cron expression for the maintenance sweeps (with seconds field).
	SweepSchedule string `mapstructure:"SWEEP_SCHEDULE"`

	// KafkaBrokers is a comma-separated list of broker addresses; empty disables notifications.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// NotifyKafkaTopic is the topic staff notifications are published to.
	NotifyKafkaTopic string `mapstructure:"NOTIFY_KAFKA_TOPIC"`

	// AuditSpillPath is the bbolt file audit events are spooled to when the store is down.
	AuditSpillPath string `mapstructure:"AUDIT_SPILL_PATH"`

	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogEncoding is "json" or "console".
	LogEncoding string `mapstructure:"LOG_ENCODING"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MAX_SESSIONS_PER_USER", 3)
	v.SetDefault("INACTIVITY_TIMEOUT_MINUTES", 30)
	v.SetDefault("ABSOLUTE_TIMEOUT_MINUTES", 480)
	v.SetDefault("WARNING_THRESHOLD_MINUTES", 5)
	v.SetDefault("EVICT_OLDEST_ON_OVERFLOW", false)
	v.SetDefault("SESSION_RETENTION_DAYS", 30)
	v.SetDefault("HANDOVER_TIMEOUT_MINUTES", 10)
	v.SetDefault("AUTOMATIC_HANDOVER_ON_RELOGIN", false)
	v.SetDefault("PRESERVE_AUX_SESSION_DATA", false)
	v.SetDefault("SWEEP_SCHEDULE", "0 * * * * *") // every minute
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "shiftwise-notify")
	v.SetDefault("AUDIT_SPILL_PATH", "data/audit-spill.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.MaxSessionsPerUser < 1 {
		return nil, errors.New("config: MAX_SESSIONS_PER_USER must be at least 1")
	}
	if cfg.InactivityTimeoutMinutes < 1 || cfg.AbsoluteTimeoutMinutes < 1 {
		return nil, errors.New("config: session timeouts must be positive")
	}
	if cfg.InactivityTimeoutMinutes > cfg.AbsoluteTimeoutMinutes {
		return nil, errors.New("config: INACTIVITY_TIMEOUT_MINUTES must not exceed ABSOLUTE_TIMEOUT_MINUTES")
	}
	if cfg.HandoverTimeoutMinutes < 1 {
		return nil, errors.New("config: HANDOVER_TIMEOUT_MINUTES must be positive")
	}
	if cfg.SessionRetentionDays < 1 {
		return nil, errors.New("config: SESSION_RETENTION_DAYS must be positive")
	}

	return &cfg, nil
}

// InactivityTimeout returns the idle timeout as a duration.
func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutMinutes) * time.Minute
}

// AbsoluteTimeout returns the hard session lifetime ceiling as a duration.
func (c *Config) AbsoluteTimeout() time.Duration {
	return time.Duration(c.AbsoluteTimeoutMinutes) * time.Minute
}

// WarningThreshold returns the expiry-warning window as a duration.
func (c *Config) WarningThreshold() time.Duration {
	return time.Duration(c.WarningThresholdMinutes) * time.Minute
}

// HandoverTimeout returns the handover acceptance window as a duration.
func (c *Config) HandoverTimeout() time.Duration {
	return time.Duration(c.HandoverTimeoutMinutes) * time.Minute
}

// SessionRetention returns how long terminated sessions are retained.
func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionDays) * 24 * time.Hour
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// Used to decide if notifications are enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
