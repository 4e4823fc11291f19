// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Messaging  MessagingConfig  `mapstructure:"messaging"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GatewayConfig struct {
	URL            string               `mapstructure:"url"`
	AuthKey        string               `mapstructure:"auth_key"`
	Timeout        int                  `mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

type OutboxConfig struct {
	// MaxAttempts is the number of delivery attempts before a message is
	// marked permanently failed.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BatchSize is the number of messages claimed per ProcessOutbox cycle.
	BatchSize int `mapstructure:"batch_size"`
	// LeaseTimeoutMinutes is how long a message may sit in the sending state
	// before it is considered abandoned and requeued.
	LeaseTimeoutMinutes int `mapstructure:"lease_timeout_minutes"`
}

type MessagingConfig struct {
	DefaultLocale string `mapstructure:"default_locale"`
	CountryCode   string `mapstructure:"country_code"`
}

type AuthConfig struct {
	MaxFailedLogins        int `mapstructure:"max_failed_logins"`
	LockoutDurationMinutes int `mapstructure:"lockout_duration_minutes"`
	PBKDFIterations        int `mapstructure:"pbkdf_iterations"`
	SaltLengthBytes        int `mapstructure:"salt_length_bytes"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("gateway.timeout", 30)
	viper.SetDefault("gateway.circuit_breaker.max_requests", 3)
	viper.SetDefault("gateway.circuit_breaker.interval", 60)
	viper.SetDefault("gateway.circuit_breaker.timeout", 60)
	viper.SetDefault("gateway.circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("gateway.circuit_breaker.consecutive_fails", 5)
	viper.SetDefault("scheduler.interval_minutes", 2)
	viper.SetDefault("outbox.max_attempts", 3)
	viper.SetDefault("outbox.batch_size", 50)
	viper.SetDefault("outbox.lease_timeout_minutes", 10)
	viper.SetDefault("messaging.default_locale", "en")
	viper.SetDefault("messaging.country_code", "234")
	viper.SetDefault("auth.max_failed_logins", 5)
	viper.SetDefault("auth.lockout_duration_minutes", 15)
	viper.SetDefault("auth.pbkdf_iterations", 100000)
	viper.SetDefault("auth.salt_length_bytes", 16)
	viper.SetDefault("middleware.rate_limit", 100)
	viper.SetDefault("middleware.rate_limit_burst", 1000)
	viper.SetDefault("middleware.enable_cors", true)
	viper.SetDefault("middleware.allowed_origins", []string{"*"})

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// LockoutDuration returns the lockout window as a time.Duration.
func (a *AuthConfig) LockoutDuration() time.Duration {
	return time.Duration(a.LockoutDurationMinutes) * time.Minute
}

// LeaseTimeout returns the sending-lease timeout as a time.Duration.
func (o *OutboxConfig) LeaseTimeout() time.Duration {
	return time.Duration(o.LeaseTimeoutMinutes) * time.Minute
}
