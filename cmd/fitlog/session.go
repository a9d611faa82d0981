package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/session"
)

func runSession(d deps) func(ctx context.Context, c *cli.Context, rt *runtime) error {
	return func(ctx context.Context, c *cli.Context, rt *runtime) error {
		if c.NArg() != 1 {
			return errors.New("session needs exactly one workout id or name")
		}
		def, err := resolveWorkout(rt.catalog, c.Args().First())
		if err != nil {
			return err
		}
		photo := c.String("photo")
		if photo != "" {
			if _, err := os.Stat(photo); err != nil {
				return fmt.Errorf("photo: %w", err)
			}
		}

		snaps, unsubscribe := rt.tracker.Subscribe()
		defer unsubscribe()
		if err := rt.tracker.StartSession(def.ID); err != nil {
			return err
		}

		inputCtx, stopInput := context.WithCancel(ctx)
		defer stopInput()
		out := c.App.Writer
		commands := readCommands(inputCtx, d.stdin)
		last := ""
		for {
			select {
			case <-ctx.Done():
				rt.tracker.CancelSession()
				return ctx.Err()
			case snap := <-snaps:
				if line := statusLine(snap.Session); line != "" && line != last {
					last = line
					fmt.Fprintln(out, line)
				}
			case cmd, ok := <-commands:
				if !ok {
					rt.tracker.CancelSession()
					fmt.Fprintln(out, "input closed, session cancelled")
					return nil
				}
				switch cmd {
				case "p", "pause":
					rt.tracker.PauseSession()
				case "r", "resume":
					rt.tracker.ResumeSession()
				case "c", "cancel":
					rt.tracker.CancelSession()
					fmt.Fprintln(out, "session cancelled")
					return nil
				case "f", "finish":
					return finishSession(ctx, out, rt, photo)
				case "":
				default:
					fmt.Fprintf(out, "unknown command %q, use p, r, f or c\n", cmd)
				}
			}
		}
	}
}

func finishSession(ctx context.Context, out io.Writer, rt *runtime, photo string) error {
	imageRef := ""
	if photo != "" {
		ref, err := rt.tracker.AttachPhoto(ctx, photo)
		if err != nil {
			rt.logger.Warn("photo not attached", "path", photo, "err", err)
		}
		imageRef = ref
	}

	entry, err := rt.tracker.FinishSession(ctx, imageRef)
	if err != nil {
		return err
	}
	if entry == nil {
		_, err := fmt.Fprintln(out, "session too short, nothing logged")
		return err
	}
	return report(out, rt, fmt.Sprintf("logged %s: %s min, %s kcal",
		entry.Workout, formatFloat(entry.DurationMinutes), formatFloat(entry.Calories)))
}

// resolveWorkout accepts a catalog id or a case-insensitive workout name.
func resolveWorkout(catalog *domain.Catalog, arg string) (domain.WorkoutDefinition, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		if def, ok := catalog.Find(id); ok {
			return def, nil
		}
	}
	for _, def := range catalog.All() {
		if strings.EqualFold(def.Name, strings.TrimSpace(arg)) {
			return def, nil
		}
	}
	return domain.WorkoutDefinition{}, fmt.Errorf("%w: %q", domain.ErrWorkoutNotFound, arg)
}

// readCommands streams trimmed, lower-cased input lines until r is exhausted or ctx ends.
func readCommands(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- strings.ToLower(strings.TrimSpace(scanner.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func statusLine(snap session.Snapshot) string {
	if snap.Workout == nil {
		return ""
	}
	return fmt.Sprintf("%s %s %s", formatElapsed(snap.ElapsedSeconds), snap.State, snap.Workout.Name)
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
