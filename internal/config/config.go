package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	StoreBackend       string // "firestore" or "sqlite"
	FirestoreProjectID string
	DBPath             string
	ServerPort         string
	LogLevel           string
	WebhookURL         string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		StoreBackend:       getEnv("STORE_BACKEND", "sqlite"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		DBPath:             getEnv("DB_PATH", "ratings.db"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		WebhookURL:         getEnv("WEBHOOK_URL", ""),
	}

	if cfg.StoreBackend != "firestore" && cfg.StoreBackend != "sqlite" {
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "firestore" && cfg.FirestoreProjectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
	}

	logger.Info().
		Str("store_backend", cfg.StoreBackend).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Bool("webhook_configured", cfg.WebhookURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
