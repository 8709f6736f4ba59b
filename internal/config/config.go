package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings, grouped by concern.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	Tasks  TasksConfig  `mapstructure:"tasks"`
	Stats  StatsConfig  `mapstructure:"stats"`
	Alerts AlertsConfig `mapstructure:"alerts"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	LogLevel    string   `mapstructure:"log_level"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TasksConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type AlertsConfig struct {
	WebhookURLs []string `mapstructure:"webhook_urls"`
}

// Load reads configuration from the environment with sane defaults.
// Every key maps to a DISASTERAI_-prefixed variable, e.g. server.port
// becomes DISASTERAI_SERVER_PORT.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout", 2*time.Minute)
	v.SetDefault("tasks.retention", 24*time.Hour)
	v.SetDefault("stats.interval", 30*time.Second)
	v.SetDefault("alerts.webhook_urls", []string{})

	v.SetEnvPrefix("DISASTERAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
