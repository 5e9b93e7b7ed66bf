package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/invopay/reminder-api/internal/repository/postgres"
	"github.com/invopay/reminder-api/internal/sender/email"
	"github.com/invopay/reminder-api/internal/worker"
	"github.com/invopay/reminder-api/pkg/messaging/redis"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	WhatsApp   WhatsAppConfig   `mapstructure:"whatsapp"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
}

type ServerConfig struct {
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type WhatsAppConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	StoreDSN string `mapstructure:"store_dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type DispatcherConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	StatusCacheTTL time.Duration `mapstructure:"status_cache_ttl"`
}

type ScheduleConfig struct {
	SendHour int    `mapstructure:"send_hour"`
	Timezone string `mapstructure:"timezone"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_limit", 50)
	viper.SetDefault("server.rate_burst", 100)
	viper.SetDefault("dispatcher.batch_size", 100)
	viper.SetDefault("dispatcher.poll_interval", time.Minute)
	viper.SetDefault("dispatcher.max_attempts", 5)
	viper.SetDefault("dispatcher.status_cache_ttl", 30*time.Second)
	viper.SetDefault("schedule.send_hour", 9)
	viper.SetDefault("schedule.timezone", "UTC")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables if present
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		config.Database.Port, _ = strconv.Atoi(port)
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		config.SMTP.Password = password
	}

	return &config, nil
}

// SendLocation resolves the configured timezone, falling back to UTC.
func (c *ScheduleConfig) SendLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Conversion helpers into the package-level config types.

func (c *DatabaseConfig) ToDBConfig() postgres.DBConfig {
	return postgres.DBConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
		SSLMode:  c.SSLMode,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *SMTPConfig) ToEmailConfig() email.Config {
	return email.Config{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
	}
}

func (c *DispatcherConfig) ToWorkerConfig() worker.DispatcherConfig {
	return worker.DispatcherConfig{
		BatchSize:      c.BatchSize,
		PollInterval:   c.PollInterval,
		MaxAttempts:    c.MaxAttempts,
		StatusCacheTTL: c.StatusCacheTTL,
	}
}
