package commands

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// ServeCmd implements the serve command
type ServeCmd struct {
	flags *Flags
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "serve",
		Usage:  "run the shopping list sync service and its HTTP API until interrupted",
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	a, cfg, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("api", cfg.APIURL).
		Bool("telegram", cfg.TelegramEnabled()).
		Msg("starting mealsync")

	if err := a.Serve(ctx); err != nil {
		return err
	}

	log.Info().Msg("mealsync stopped")
	return nil
}
