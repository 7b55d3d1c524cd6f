// Package config loads the queue library's configuration from
// defaults, an optional YAML file, and TASKQUEUE_-prefixed
// environment variables, in that order of increasing precedence.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Scheduler SchedulerConfig
	Control   ControlConfig
	Metrics   MetricsConfig
	Auth      AuthConfig

	RetryLimit    int
	LogLevel      string
	EnableLogging bool
}

// ServerConfig configures the optional admin HTTP surface (internal/api).
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimitRPS int
}

// StoreConfig configures the Redis-backed Store Adapter.
type StoreConfig struct {
	URL             string
	PoolSize        int
	MinIdleConns    int
	MaxRetries      int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	BlockTimeout    time.Duration
	RecoveryEnabled bool
}

// SchedulerConfig configures the interval/cron trigger loop (§4.4).
type SchedulerConfig struct {
	TickInterval         time.Duration
	StatusReportInterval time.Duration
}

// ControlConfig configures the pause/resume reconcile loop (§4.5).
type ControlConfig struct {
	ReconcileInterval time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/taskqueue")

	setDefaults()

	viper.SetEnvPrefix("TASKQUEUE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults (optional admin API)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.readtimeout", 30*time.Second)
	viper.SetDefault("server.writetimeout", 30*time.Second)
	viper.SetDefault("server.idletimeout", 120*time.Second)
	viper.SetDefault("server.ratelimitrps", 1000)

	// Store defaults
	viper.SetDefault("store.url", "redis://localhost:6379/0")
	viper.SetDefault("store.poolsize", 50)
	viper.SetDefault("store.minidleconns", 5)
	viper.SetDefault("store.maxretries", 3)
	viper.SetDefault("store.dialtimeout", 5*time.Second)
	viper.SetDefault("store.readtimeout", 10*time.Second)
	viper.SetDefault("store.writetimeout", 3*time.Second)
	viper.SetDefault("store.blocktimeout", 5*time.Second)
	viper.SetDefault("store.recoveryenabled", true)

	// Scheduler defaults
	viper.SetDefault("scheduler.tickinterval", 1*time.Second)
	viper.SetDefault("scheduler.statusreportinterval", 300*time.Second)

	// Control plane defaults
	viper.SetDefault("control.reconcileinterval", 5*time.Second)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Auth defaults
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})

	// Library-level defaults (§6)
	viper.SetDefault("retrylimit", 3)
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("enablelogging", true)
}
