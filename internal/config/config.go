package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Lighthouse LighthouseConfig `yaml:"lighthouse"`
	Snake      SnakeConfig      `yaml:"snake"`
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	LogLevel   string           `yaml:"logLevel"`
}

// LighthouseConfig holds the connection settings
type LighthouseConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Token       string `yaml:"token"`
	EventBuffer int    `yaml:"eventBuffer"`
}

// SnakeConfig holds settings of the example animation
type SnakeConfig struct {
	IntervalMillis int `yaml:"intervalMillis"`
}

// ServerConfig holds status server configuration
type ServerConfig struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"readTimeout"`
	WriteTimeout int `yaml:"writeTimeout"`
}

// RedisConfig holds Redis-related configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	FrameTTL int    `yaml:"frameTTL"` // seconds
}

// Load loads configuration from defaults, an optional YAML file named by
// LIGHTHOUSE_CONFIG_FILE, and environment variables, in that order
func Load() (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("LIGHTHOUSE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Lighthouse = LighthouseConfig{
		URL:         getEnv("LIGHTHOUSE_URL", cfg.Lighthouse.URL),
		Username:    getEnv("LIGHTHOUSE_USERNAME", cfg.Lighthouse.Username),
		Token:       getEnv("LIGHTHOUSE_TOKEN", cfg.Lighthouse.Token),
		EventBuffer: getEnvAsInt("LIGHTHOUSE_EVENT_BUFFER", cfg.Lighthouse.EventBuffer),
	}
	cfg.Snake.IntervalMillis = getEnvAsInt("SNAKE_INTERVAL_MS", cfg.Snake.IntervalMillis)
	cfg.Server = ServerConfig{
		Port:         getEnvAsInt("SERVER_PORT", cfg.Server.Port),
		ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout),
		WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout),
	}
	cfg.Redis = RedisConfig{
		Addr:     getRedisAddr(cfg.Redis.Addr),
		Password: getEnv("REDIS_PASSWORD", cfg.Redis.Password),
		DB:       getEnvAsInt("REDIS_DB", cfg.Redis.DB),
		FrameTTL: getEnvAsInt("REDIS_FRAME_TTL", cfg.Redis.FrameTTL),
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Lighthouse: LighthouseConfig{
			URL:         lighthouse.DefaultURL,
			EventBuffer: lighthouse.DefaultEventBuffer,
		},
		Snake: SnakeConfig{
			IntervalMillis: 1000,
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10,
			WriteTimeout: 10,
		},
		Redis: RedisConfig{
			FrameTTL: 60,
		},
		LogLevel: "info",
	}
}

// loadFile overlays the YAML file at path onto cfg
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks that the settings needed to connect are present
func (c *Config) Validate() error {
	var errs []error
	if c.Lighthouse.Username == "" {
		errs = append(errs, errors.New("LIGHTHOUSE_USERNAME is required"))
	}
	if c.Lighthouse.Token == "" {
		errs = append(errs, errors.New("LIGHTHOUSE_TOKEN is required"))
	}
	if c.Snake.IntervalMillis <= 0 {
		errs = append(errs, fmt.Errorf("snake interval must be positive, got %d", c.Snake.IntervalMillis))
	}
	return multierr.Combine(errs...)
}

// Credentials returns the lighthouse credentials from the config
func (c *Config) Credentials() lighthouse.Credentials {
	return lighthouse.NewCredentials(c.Lighthouse.Username, c.Lighthouse.Token)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getRedisAddr prefers REDIS_URL (with or without the redis:// scheme) over REDIS_ADDR
func getRedisAddr(defaultValue string) string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return strings.TrimPrefix(url, "redis://")
	}
	return getEnv("REDIS_ADDR", defaultValue)
}
