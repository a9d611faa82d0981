package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/fitlog/internal/api"
	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/outbox"
	"example.com/fitlog/internal/persistence/postgres"
	httptransport "example.com/fitlog/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(os.Stderr, "fitlog-api", cfg.LogLevel, observability.FormatLogfmt)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	repo := postgres.NewRepository(pool, cfg.EventsTopic)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger.WithPrefix("kafka"))
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
		outbox.WithLogger(logger.WithPrefix("outbox")))

	handler := api.NewHandler(repo, repo, api.Options{
		MaxImageBytes: cfg.MaxImageBytes,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, APIKey: cfg.APIKey})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.CORS(cfg.CORSOrigins...),
		httptransport.RequestLogger(logger),
		authMiddleware.Wrap,
	))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", "err", err)
		}
		return nil
	})

	err = g.Wait()
	dispatcher.Wait()
	return err
}
