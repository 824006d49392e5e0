package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	LocalDBPath     string
	Port            string
	LogFile         string
	PollInterval    int // seconds
	SyncBatchSize   int
	MaxRetries      int
	ShutdownTimeout int // seconds
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	localDBPath := os.Getenv("LOCAL_DB_PATH")
	if localDBPath == "" {
		localDBPath = ".motium/local.db"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		DatabaseURL:     dbURL,
		LocalDBPath:     localDBPath,
		Port:            port,
		LogFile:         os.Getenv("LOG_FILE"),
		PollInterval:    envInt("POLL_INTERVAL", 30),
		SyncBatchSize:   envInt("SYNC_BATCH_SIZE", 100),
		MaxRetries:      envInt("MAX_RETRIES", 5),
		ShutdownTimeout: envInt("SHUTDOWN_TIMEOUT", 30),
	}, nil
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		fmt.Printf("Warning: invalid %s=%q, using default %d\n", key, raw, fallback)
		return fallback
	}
	return v
}
