package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/gitwatch/internal/adapter/driven/github"
	"github.com/ericfisherdev/gitwatch/internal/adapter/driven/logsink"
	sqliteadapter "github.com/ericfisherdev/gitwatch/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/gitwatch/internal/adapter/driven/webhook"
	httphandler "github.com/ericfisherdev/gitwatch/internal/adapter/driving/http"
	"github.com/ericfisherdev/gitwatch/internal/application"
	"github.com/ericfisherdev/gitwatch/internal/config"
	"github.com/ericfisherdev/gitwatch/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"commit_window", cfg.CommitWindow,
		"authenticated", cfg.GitHubToken != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	configStore := sqliteadapter.NewConfigRepo(db)
	ghClient := githubadapter.NewClient(cfg.GitHubToken)

	var sink driven.EventSink
	if cfg.WebhookURL != "" {
		sink = webhook.NewSink(cfg.WebhookURL)
		slog.Info("webhook delivery enabled")
	} else {
		sink = logsink.NewSink(slog.Default())
		slog.Info("no webhook configured, events will be logged only")
	}

	// 6. Create and start the tracker service.
	tracker := application.NewTrackerService(ctx, ghClient, configStore, cfg.CommitWindow, cfg.PollInterval)
	go tracker.Start(ctx, sink)

	// 7. Serve the REST API.
	handler := httphandler.NewServeMux(httphandler.NewHandler(tracker, slog.Default()), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("gitwatch started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
	)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
