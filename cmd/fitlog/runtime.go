package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/kv/sqlite"
	"example.com/fitlog/internal/logstore"
	"example.com/fitlog/internal/logsync"
	"example.com/fitlog/internal/platform"
	"example.com/fitlog/internal/remote"
	"example.com/fitlog/internal/session"
	"example.com/fitlog/internal/tracker"
)

// runtime is the fully wired client for one command invocation.
type runtime struct {
	cfg     config.ClientConfig
	paths   platform.Paths
	logger  *log.Logger
	catalog *domain.Catalog
	tracker *tracker.Service
	remote  bool
	close   func()
}

func openRuntime(c *cli.Context, d deps) (*runtime, error) {
	cfg, ok := c.App.Metadata[metaConfig].(config.ClientConfig)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	paths, _ := c.App.Metadata[metaPaths].(platform.Paths)
	logger, _ := c.App.Metadata[metaLogger].(*log.Logger)

	catalog, err := domain.NewCatalog(cfg.Workouts)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	local := logstore.New(store, logstore.WithClock(d.now), logstore.WithLogger(logger.WithPrefix("logstore")))

	trackerOpts := []tracker.Option{
		tracker.WithClock(d.now),
		tracker.WithLogger(logger.WithPrefix("tracker")),
	}
	if days := c.Int("days"); days > 0 {
		trackerOpts = append(trackerOpts, tracker.WithProgressDays(days))
	}
	// A nil interface, not a nil *remote.Client, selects offline mode.
	var hosted logsync.Remote
	if cfg.Remote.Enabled {
		timeout, err := cfg.Remote.ParsedTimeout()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		client, err := remote.NewClient(remote.Config{
			BaseURL:     cfg.Remote.BaseURL,
			APIKey:      cfg.Remote.APIKey,
			AccessToken: cfg.Remote.AccessToken,
			Table:       cfg.Remote.Table,
			Bucket:      cfg.Remote.Bucket,
			Timeout:     timeout,
		}, remote.WithClock(d.now))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		hosted = client
		trackerOpts = append(trackerOpts, tracker.WithImageUploader(client))
	}
	repo := logsync.NewRepository(hosted, local, logsync.WithLogger(logger.WithPrefix("sync")))

	timerOpts := []session.Option{session.WithClock(d.now), session.WithLogger(logger.WithPrefix("session"))}
	if d.ticker != nil {
		timerOpts = append(timerOpts, session.WithTicker(d.ticker))
	}
	timer := session.New(catalog, timerOpts...)
	svc := tracker.New(catalog, timer, repo, trackerOpts...)

	return &runtime{
		cfg:     cfg,
		paths:   paths,
		logger:  logger,
		catalog: catalog,
		tracker: svc,
		remote:  hosted != nil,
		close: func() {
			svc.Close()
			if err := store.Close(); err != nil {
				logger.Warn("close local store", "err", err)
			}
		},
	}, nil
}

// withRuntime opens the runtime, loads the log collection and runs fn.
func withRuntime(d deps, fn func(ctx context.Context, c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := openRuntime(c, d)
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.tracker.Refresh(c.Context); err != nil {
			return err
		}
		return fn(c.Context, c, rt)
	}
}
