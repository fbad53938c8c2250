package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"meal-planner-sync/internal/commands"
)

// version reports the module version and VCS revision recorded by go build.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	v := info.Main.Version
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			v += " (" + s.Value[:7] + ")"
		}
	}
	return v
}

func setupLogger(level string, noColor bool) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}).Level(parsedLevel)

	return nil
}

func run() (noColor bool, err error) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:    "mealsync",
		Usage:   "Keeps the shopping list in step with the weekly meal plan",
		Version: version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.BoolFlag{
				Name:        "no-color",
				Usage:       "disable colored output",
				Sources:     cli.EnvVars("NO_COLOR"),
				Destination: &flags.NoColor,
			},
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "load environment variables from this file (default .env when present)",
				Destination: &flags.EnvFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.NoColor); err != nil {
				return ctx, err
			}

			if err := flags.LoadEnv(); err != nil {
				return ctx, err
			}

			return ctx, nil
		},
	}
	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewSyncCmd(flags).Register(app)
	app = commands.NewLoginCmd(flags).Register(app)
	app = commands.NewHistoryCmd(flags).Register(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return flags.NoColor, app.Run(ctx, os.Args)
}

func main() {
	noColor, err := run()
	if err != nil {
		if noColor {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "\033[31merror:\033[0m %v\n", err)
		}
		os.Exit(1)
	}
}
