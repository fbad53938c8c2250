package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"meal-planner-sync/internal/app"
	"meal-planner-sync/internal/config"
)

// Flags holds the global flags shared by every command.
type Flags struct {
	LogLevel string
	NoColor  bool
	EnvFile  string
}

// LoadEnv reads the env file into the process environment. Variables that
// are already set win. A missing default .env is not an error.
func (f *Flags) LoadEnv() error {
	if f.EnvFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(f.EnvFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", f.EnvFile, err)
	}
	log.Debug().Str("file", f.EnvFile).Msg("environment loaded")
	return nil
}

// openApp loads the configuration and wires the application.
func (f *Flags) openApp(ctx context.Context) (*app.App, *config.Config, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}
