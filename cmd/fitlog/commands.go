package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/platform"
)

func commands(d deps) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "workouts",
			Usage:  "list the workout catalog",
			Action: withRuntime(d, listWorkouts),
		},
		{
			Name:      "session",
			Usage:     "time a workout; type p to pause, r to resume, f to finish, c to cancel",
			ArgsUsage: "<workout id or name>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "photo", Usage: "image to attach to the finished session"},
			},
			Action: withRuntime(d, runSession(d)),
		},
		{
			Name:  "logs",
			Usage: "inspect and edit the activity log",
			Subcommands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "show every log, newest first",
					Action: withRuntime(d, listLogs),
				},
				{
					Name:      "delete",
					Usage:     "remove the log with the given timestamp",
					ArgsUsage: "<timestamp>",
					Action:    withRuntime(d, deleteLog),
				},
				{
					Name:  "clear",
					Usage: "remove every log",
					Flags: []cli.Flag{
						&cli.BoolFlag{Name: "yes", Usage: "confirm removal of every log"},
					},
					Action: withRuntime(d, clearLogs),
				},
			},
		},
		{
			Name:   "stats",
			Usage:  "show today's totals and the current streak",
			Action: withRuntime(d, showStats),
		},
		{
			Name:  "progress",
			Usage: "show calories and minutes for recent days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "days",
					Value: domain.DefaultProgressDays,
					Usage: "number of days ending today",
					Action: func(_ *cli.Context, days int) error {
						if days < 1 {
							return fmt.Errorf("--days must be at least 1, got %d", days)
						}
						return nil
					},
				},
			},
			Action: withRuntime(d, showProgress),
		},
		{
			Name:   "summary",
			Usage:  "total every log per workout",
			Action: withRuntime(d, showSummary),
		},
		{
			Name:   "sync",
			Usage:  "reload the log from the hosted collection",
			Action: withRuntime(d, syncLogs),
		},
		{
			Name:   "paths",
			Usage:  "print the config and data locations",
			Action: showPaths,
		},
		{
			Name:   "init",
			Usage:  "write a default config file",
			Action: initConfig,
		},
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func render(w io.Writer, t *table.Table) error {
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func listWorkouts(_ context.Context, c *cli.Context, rt *runtime) error {
	t := newTable("ID", "Workout", "MET")
	for _, def := range rt.tracker.Workouts() {
		t.Row(strconv.Itoa(def.ID), def.Name, formatFloat(def.MET))
	}
	return render(c.App.Writer, t)
}

func listLogs(_ context.Context, c *cli.Context, rt *runtime) error {
	snap := rt.tracker.Snapshot()
	if len(snap.Logs) == 0 {
		_, err := fmt.Fprintln(c.App.Writer, "no workouts logged yet")
		return err
	}
	t := newTable("Date", "Time", "Workout", "Minutes", "Calories", "Timestamp", "Photo")
	for _, entry := range snap.Logs {
		t.Row(entry.Date, entry.Time, entry.Workout,
			formatFloat(entry.DurationMinutes), formatFloat(entry.Calories),
			strconv.FormatInt(entry.Timestamp, 10), entry.ImageRef)
	}
	return render(c.App.Writer, t)
}

func deleteLog(ctx context.Context, c *cli.Context, rt *runtime) error {
	if c.NArg() != 1 {
		return errors.New("delete needs exactly one timestamp")
	}
	ts, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", c.Args().First(), err)
	}

	for _, entry := range rt.tracker.Snapshot().Logs {
		if entry.Timestamp != ts {
			continue
		}
		if err := rt.tracker.DeleteLog(ctx, entry); err != nil {
			return err
		}
		return report(c.App.Writer, rt, fmt.Sprintf("deleted %s from %s %s", entry.Workout, entry.Date, entry.Time))
	}
	return fmt.Errorf("no log with timestamp %d", ts)
}

func clearLogs(ctx context.Context, c *cli.Context, rt *runtime) error {
	if !c.Bool("yes") {
		return errors.New("refusing to clear every log without --yes")
	}
	if err := rt.tracker.ClearLogs(ctx); err != nil {
		return err
	}
	return report(c.App.Writer, rt, "cleared every log")
}

func showStats(_ context.Context, c *cli.Context, rt *runtime) error {
	today := rt.tracker.Snapshot().Today
	t := newTable("Today", "Value")
	t.Row("Minutes", formatFloat(today.TotalDurationMinutes))
	t.Row("Calories", formatFloat(today.TotalCalories))
	t.Row("Streak", fmt.Sprintf("%d day(s)", today.Streak))
	return render(c.App.Writer, t)
}

func showProgress(_ context.Context, c *cli.Context, rt *runtime) error {
	t := newTable("Day", "Date", "Calories", "Minutes")
	for _, point := range rt.tracker.Snapshot().Progress {
		t.Row(point.Label, point.Date, formatFloat(point.TotalCalories), formatFloat(point.TotalDurationMinutes))
	}
	return render(c.App.Writer, t)
}

func showSummary(_ context.Context, c *cli.Context, rt *runtime) error {
	summaries := domain.Summarize(rt.tracker.Snapshot().Logs)
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(c.App.Writer, "no workouts logged yet")
		return err
	}
	t := newTable("Workout", "Sessions", "Minutes", "Calories")
	for _, s := range summaries {
		t.Row(s.Workout, strconv.Itoa(s.Sessions), formatFloat(s.TotalDurationMinutes), formatFloat(s.TotalCalories))
	}
	return render(c.App.Writer, t)
}

func syncLogs(_ context.Context, c *cli.Context, rt *runtime) error {
	snap := rt.tracker.Snapshot()
	switch {
	case !rt.remote:
		_, err := fmt.Fprintf(c.App.Writer, "remote disabled, %d local log(s)\n", len(snap.Logs))
		return err
	case snap.Synced:
		_, err := fmt.Fprintf(c.App.Writer, "synced %d log(s) from %s\n", len(snap.Logs), rt.cfg.Remote.BaseURL)
		return err
	default:
		_, err := fmt.Fprintf(c.App.Writer, "remote unreachable, showing %d local log(s)\n", len(snap.Logs))
		return err
	}
}

func showPaths(c *cli.Context) error {
	paths, _ := c.App.Metadata[metaPaths].(platform.Paths)
	t := newTable("Path", "Location")
	t.Row("config", paths.ConfigPath)
	t.Row("data", paths.DataDir)
	t.Row("database", paths.DBPath)
	return render(c.App.Writer, t)
}

func initConfig(c *cli.Context) error {
	cfg, _ := c.App.Metadata[metaConfig].(config.ClientConfig)
	paths, _ := c.App.Metadata[metaPaths].(platform.Paths)
	if err := config.SaveClient(paths.ConfigPath, cfg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.App.Writer, "wrote %s\n", paths.ConfigPath)
	return err
}

// report prints msg with whether the hosted collection saw the change.
func report(w io.Writer, rt *runtime, msg string) error {
	where := "local only"
	if rt.tracker.Snapshot().Synced {
		where = "synced"
	}
	_, err := fmt.Fprintf(w, "%s (%s)\n", msg, where)
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
