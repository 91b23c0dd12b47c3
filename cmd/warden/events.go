package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/events/journal"
)

var eventsFlags struct {
	limit int
	prune bool
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent events from the journal",
	Long: `Read the most recent events from the on-disk event journal, newest first.

The journal is opened directly; the agent does not need to be running.

Examples:
  # Show the last 20 events
  warden events

  # Show the last 100 events as JSON
  warden events --limit 100 --output json

  # Apply the retention period now
  warden events --prune`,
	RunE: showEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().IntVarP(&eventsFlags.limit, "limit", "n", 20, "maximum number of events")
	eventsCmd.Flags().BoolVar(&eventsFlags.prune, "prune", false, "delete events older than journal.retention_days first")
}

func showEvents(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	if !cfg.Journal.Enabled {
		return cli.NewConfigError("journal.enabled", "the event journal is disabled")
	}
	if eventsFlags.limit <= 0 {
		return cli.NewConfigError("limit", "must be positive")
	}

	j, err := journal.Open(journal.Config{
		Path:          cfg.Journal.Path,
		RetentionDays: cfg.Journal.RetentionDays,
		PruneSchedule: cfg.Journal.PruneSchedule,
		BusyTimeout:   cfg.Store.SQLite.BusyTimeout,
	}, slog.Default())
	if err != nil {
		return cli.NewCommandError("events", err)
	}
	defer j.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if eventsFlags.prune {
		n, err := j.Prune(ctx)
		if err != nil {
			return cli.NewCommandError("events", err)
		}
		fmt.Fprintf(stdout(cmd), "✓ Pruned %d events\n", n)
	}

	recent, err := j.Recent(ctx, eventsFlags.limit)
	if err != nil {
		return cli.NewCommandError("events", err)
	}
	if recent == nil {
		recent = []events.Event{}
	}

	if outputFormat != string(cli.FormatText) {
		return render(cmd, recent)
	}
	return writeEventTable(stdout(cmd), recent)
}

func writeEventTable(w io.Writer, list []events.Event) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No events recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tNODE\tPOLICY\tPROCESS\tDECISION\tMESSAGE")
	for _, e := range list {
		process := e.ProcessName
		if e.PID != 0 {
			process = fmt.Sprintf("%s (%d)", e.ProcessName, e.PID)
		}
		decision := ""
		if e.Type == events.TypeFileAccess {
			decision = e.Decision.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.RFC3339),
			e.Type,
			idOrDash(e.NodeID),
			idOrDash(e.PolicyID),
			dashIfEmpty(process),
			dashIfEmpty(decision),
			e.Message,
		)
	}
	return tw.Flush()
}

func idOrDash(id uint64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", id)
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
