package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for scribble-engine
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	Content    ContentConfig
	Game       GameConfig
	Realtime   RealtimeConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN runs the
// engine on the in-memory store (local development only).
type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
}

// RedisConfig holds Redis configuration for the cross-instance broadcast
// bus. An empty address disables the bus; broadcasts stay instance-local.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ClassifierConfig holds the inference service configuration
type ClassifierConfig struct {
	URL     string
	Timeout time.Duration
}

// ContentConfig holds level content configuration
type ContentConfig struct {
	File string
}

// GameConfig holds game tuning parameters
type GameConfig struct {
	UnlockThreshold int
	LeaderboardSize int
}

// RealtimeConfig holds websocket tuning parameters
type RealtimeConfig struct {
	WriteTimeout           time.Duration
	LeaderboardRefreshRate time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxOpenConns:  getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			MigrationsDir: getEnv("DATABASE_MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Classifier: ClassifierConfig{
			URL:     getEnv("CLASSIFIER_URL", "http://localhost:8500"),
			Timeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
		},
		Content: ContentConfig{
			File: getEnv("CONTENT_FILE", "./content/levels.yaml"),
		},
		Game: GameConfig{
			UnlockThreshold: getEnvAsInt("GAME_UNLOCK_THRESHOLD", 2),
			LeaderboardSize: getEnvAsInt("GAME_LEADERBOARD_SIZE", 5),
		},
		Realtime: RealtimeConfig{
			WriteTimeout:           getEnvAsDuration("REALTIME_WRITE_TIMEOUT", 10*time.Second),
			LeaderboardRefreshRate: getEnvAsDuration("REALTIME_LEADERBOARD_REFRESH", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Classifier.URL == "" {
		return fmt.Errorf("classifier URL is required")
	}

	if c.Game.UnlockThreshold < 1 {
		return fmt.Errorf("unlock threshold must be at least 1, got %d", c.Game.UnlockThreshold)
	}

	if c.Game.LeaderboardSize < 1 {
		return fmt.Errorf("leaderboard size must be at least 1, got %d", c.Game.LeaderboardSize)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
