// Command fitlog times workout sessions and keeps the activity log on this machine, in
// step with the hosted collection when one is configured.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/platform"
	"example.com/fitlog/internal/session"
)

// deps are the process-level collaborators tests replace.
type deps struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	ticker session.TickerFactory
	paths  func() (platform.Paths, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := deps{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
		paths:  func() (platform.Paths, error) { return platform.DefaultPaths(platform.AppName) },
	}
	if err := run(ctx, os.Args, d); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, d deps) error {
	return newApp(d).RunContext(ctx, args)
}

func newApp(d deps) *cli.App {
	var logger *log.Logger
	return &cli.App{
		Name:      "fitlog",
		HelpName:  "fitlog",
		Usage:     "time workouts and track calories, streaks and progress",
		Reader:    d.stdin,
		Writer:    d.stdout,
		ErrWriter: d.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the TOML config file",
				EnvVars: []string{"FITLOG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to the local SQLite store",
				EnvVars: []string{"FITLOG_DB_PATH"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level from the config file",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, paths, err := loadConfig(c, d)
			if err != nil {
				return err
			}
			logger, err = observability.NewLogger(c.App.ErrWriter, "fitlog", cfg.Logging.Level, observability.FormatText)
			if err != nil {
				return err
			}
			c.App.Metadata = map[string]interface{}{
				metaConfig: cfg,
				metaPaths:  paths,
				metaLogger: logger,
			}
			return nil
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			if logger != nil {
				logger.Error(c.App.Name, "err", err)
				return
			}
			_, _ = io.WriteString(c.App.ErrWriter, "fitlog: "+err.Error()+"\n")
		},
		Commands: commands(d),
	}
}

const (
	metaConfig = "config"
	metaPaths  = "paths"
	metaLogger = "logger"
)

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(c *cli.Context, d deps) (config.ClientConfig, platform.Paths, error) {
	paths, err := d.paths()
	if err != nil {
		return config.ClientConfig{}, platform.Paths{}, err
	}
	if v := strings.TrimSpace(c.String("config")); v != "" {
		paths.ConfigPath = v
	}

	cfg, err := config.LoadClient(paths.ConfigPath, config.DefaultClient(paths.DBPath))
	if err != nil {
		return config.ClientConfig{}, platform.Paths{}, err
	}
	if v := strings.TrimSpace(c.String("db")); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(c.String("log-level")); v != "" {
		cfg.Logging.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return config.ClientConfig{}, platform.Paths{}, err
	}
	paths.DBPath = cfg.Database.Path
	return cfg, paths, nil
}
