package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"meal-planner-sync/internal/listsync"
	"meal-planner-sync/internal/metrics"
)

// HistoryCmd implements the history and history-cleanup commands
type HistoryCmd struct {
	flags *Flags
	limit int
	daily int
	days  int
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history commands to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:  "history",
			Usage: "print recent sync runs",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:        "limit",
					Aliases:     []string{"n"},
					Usage:       "number of runs to show",
					Value:       20,
					Destination: &cmd.limit,
				},
				&cli.IntFlag{
					Name:        "daily",
					Usage:       "print per-day totals for this many days instead of single runs",
					Destination: &cmd.daily,
				},
			},
			Action: cmd.list,
		},
		&cli.Command{
			Name:  "history-cleanup",
			Usage: "delete sync runs older than the retention period",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:        "days",
					Usage:       "retention in days (defaults to MEALSYNC_HISTORY_RETENTION_DAYS)",
					Destination: &cmd.days,
				},
			},
			Action: cmd.cleanup,
		},
	)

	return app
}

func (cmd *HistoryCmd) list(ctx context.Context, _ *cli.Command) error {
	a, _, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.daily > 0 {
		days, err := a.DailySummary(ctx, cmd.daily)
		if err != nil {
			return err
		}
		printDailySummary(os.Stdout, days)
		return nil
	}

	outcomes, err := a.History(ctx, cmd.limit)
	if err != nil {
		return err
	}

	printHistory(os.Stdout, outcomes)
	return nil
}

func (cmd *HistoryCmd) cleanup(ctx context.Context, _ *cli.Command) error {
	a, cfg, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	days := cmd.days
	if days == 0 {
		days = cfg.RetentionDays
	}

	fmt.Printf("Cleaning up sync runs older than %d days...\n", days)
	n, err := a.CleanupHistory(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to clean up history: %w", err)
	}

	fmt.Printf("Cleanup complete. Deleted %d runs.\n", n)
	return nil
}

func printHistory(w io.Writer, outcomes []listsync.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No sync runs recorded yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tACTION\tSTATUS\tSTAGE\tMANUAL\tDURATION\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			o.StartedAt.Local().Format("2006-01-02 15:04:05"),
			o.Action,
			o.Status,
			o.Stage,
			o.Reinserted, o.ManualFound,
			o.Duration.Round(time.Millisecond),
			o.Error,
		)
	}
	tw.Flush()
}

func printDailySummary(w io.Writer, days []metrics.DailySummary) {
	if len(days) == 0 {
		fmt.Fprintln(w, "No sync runs in this period.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tRUNS\tFAILED\tRE-ADDED")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", d.Date, d.Runs, d.Failed, d.Reinserted)
	}
	tw.Flush()
}
