package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// LoginCmd implements the login command
type LoginCmd struct {
	flags *Flags
	token string
}

// NewLoginCmd creates a new login command
func NewLoginCmd(flags *Flags) *LoginCmd {
	return &LoginCmd{flags: flags}
}

// Register adds the login and logout commands to the application
func (cmd *LoginCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "login",
		Usage: "store the API bearer token used to reach the meal planning backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "token",
				Aliases:     []string{"t"},
				Usage:       "bearer token (JWT or opaque)",
				Required:    true,
				Destination: &cmd.token,
			},
		},
		Action: cmd.run,
	}, &cli.Command{
		Name:   "logout",
		Usage:  "remove the stored API bearer token",
		Action: cmd.logout,
	})

	return app
}

func (cmd *LoginCmd) run(ctx context.Context, _ *cli.Command) error {
	a, _, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.Login(ctx, cmd.token)
	if err != nil {
		return err
	}

	if cred.ExpiresAt != nil {
		fmt.Printf("Credential stored, expires %s.\n", cred.ExpiresAt.Local().Format(time.RFC1123))
	} else {
		fmt.Println("Credential stored.")
	}
	return nil
}

func (cmd *LoginCmd) logout(ctx context.Context, _ *cli.Command) error {
	a, _, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Logout(ctx); err != nil {
		return err
	}

	fmt.Println("Credential removed.")
	return nil
}
