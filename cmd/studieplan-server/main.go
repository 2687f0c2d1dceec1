package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"studieplan/backend/internal/calendar"
	"studieplan/backend/internal/config"
	"studieplan/backend/internal/service/reservations"
	"studieplan/backend/internal/service/timeblocks"
	"studieplan/backend/internal/store/postgres"
	httpTransport "studieplan/backend/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "studieplan-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "studieplan-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if err := postgres.Migrate(context.Background(), db); err != nil {
		log.Error("migrations failed", slog.Any("err", err))
		os.Exit(1)
	}

	blockRepo := postgres.NewTimeblockRepo(db)
	reservationRepo := postgres.NewReservationRepo(db)
	credentialRepo, err := postgres.NewCredentialRepo(db, cfg.CredentialKey)
	if err != nil {
		log.Error("credential store init failed", slog.Any("err", err))
		os.Exit(1)
	}

	graph := calendar.NewGraphClient(calendar.GraphConfig{
		BaseURL:      cfg.GraphBaseURL,
		TokenURL:     cfg.GraphTokenURL,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		Timeout:      cfg.MirrorTimeout,
	})
	tokens := calendar.NewTokenManager(credentialRepo, graph, log)
	mirror := calendar.NewMirror(graph, tokens, blockRepo, log, cfg.MirrorTimeout)

	blockSvc := timeblocks.NewService(blockRepo, mirror, log)
	reservationSvc := reservations.NewService(blockRepo, reservationRepo, mirror, log)

	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := blockSvc.PurgeExpired(ctx); err != nil {
			log.Error("purge sweep failed", slog.Any("err", err))
		}
	})
	if err != nil {
		log.Error("invalid sweep schedule", slog.String("schedule", cfg.SweepSchedule), slog.Any("err", err))
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	e := httpTransport.NewServer(
		httpTransport.NewTimeblocksHandler(blockSvc, log),
		httpTransport.NewReservationsHandler(reservationSvc, log),
		httpTransport.NewCredentialsHandler(credentialRepo, log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.HTTPAddr)
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Warn("http graceful shutdown failed", slog.Any("err", err))
		} else {
			log.Info("http server stopped")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
