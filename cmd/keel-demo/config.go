package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the typed configuration of the demo server.
type Config struct {
	Addr     string
	Env      string // development | production
	LogLevel string
}

// LoadConfig reads .env files (if present) and populates a Config from the environment.
func LoadConfig(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// .env is optional
	_ = godotenv.Load(files...)

	return &Config{
		Addr:     env("KEEL_ADDR", ":8080"),
		Env:      env("KEEL_ENV", "development"),
		LogLevel: env("KEEL_LOG_LEVEL", "info"),
	}
}

// NewLogger builds the zap logger described by the config.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if c.Env == "production" {
		zc = zap.NewProductionConfig()
	}

	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

func env(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultVal
}
