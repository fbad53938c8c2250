package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/listsync"
	"meal-planner-sync/internal/planner"
)

// SyncCmd implements the sync command
type SyncCmd struct {
	flags  *Flags
	action string
	date   string
}

// NewSyncCmd creates a new sync command
func NewSyncCmd(flags *Flags) *SyncCmd {
	return &SyncCmd{flags: flags}
}

// Register adds the sync command to the application
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "sync",
		Usage: "reconcile the shopping list once as if a plan change had happened",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "action",
				Aliases:     []string{"a"},
				Usage:       "plan change to replay (recipe_added, recipe_removed, recipe_edited, plan_cleared)",
				Value:       "recipe_added",
				Destination: &cmd.action,
			},
			&cli.StringFlag{
				Name:        "date",
				Aliases:     []string{"d"},
				Usage:       "plan day that changed, YYYY-MM-DD",
				Destination: &cmd.date,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, _ *cli.Command) error {
	action := events.ParseAction(cmd.action)
	if !action.Known() {
		return fmt.Errorf("unknown action %q", cmd.action)
	}

	date, err := parseDate(cmd.date)
	if err != nil {
		return err
	}

	a, _, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := a.SyncOnce(ctx, action, date)
	printOutcome(os.Stdout, out)

	if out.Failed() {
		return fmt.Errorf("sync failed at %s: %s", out.Stage, out.Error)
	}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(planner.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &d, nil
}

func printOutcome(w io.Writer, o listsync.Outcome) {
	fmt.Fprintf(w, "Run:        %s\n", o.RunID)
	fmt.Fprintf(w, "Action:     %s\n", o.Action)
	fmt.Fprintf(w, "Status:     %s (stage %s)\n", o.Status, o.Stage)
	if o.WeekStart != "" {
		fmt.Fprintf(w, "Week:       %s\n", o.WeekStart)
	}
	if o.Action == events.ActionRecipeAdded {
		fmt.Fprintf(w, "Manual:     %d found, %d re-added, %d failed\n", o.ManualFound, o.Reinserted, o.ReinsertFailed)
	}
	fmt.Fprintf(w, "Notified:   %t\n", o.Notified)
	fmt.Fprintf(w, "Duration:   %s\n", o.Duration.Round(time.Millisecond))
	if o.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", o.Error)
	}
}
