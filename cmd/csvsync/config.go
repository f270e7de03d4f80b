package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/ligustah/csvsync/internal/config"
	"github.com/ligustah/csvsync/internal/logging"
)

// loadConfig layers defaults, the optional YAML file, .env and the process
// environment, then validates the result.
func loadConfig(path string) (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.Init(logging.Options{
		Format:  cfg.Logging.Format,
		Level:   cfg.Logging.Level,
		Service: cfg.Service.Name,
		Env:     cfg.Service.Env,
	})
}
