package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"yoyaku/internal/api"
	"yoyaku/internal/config"
	"yoyaku/internal/database"
	"yoyaku/internal/events"
	"yoyaku/internal/metrics"
	"yoyaku/internal/notify"
	"yoyaku/internal/service"
	"yoyaku/internal/timeutil"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("YOYAKU_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := timeutil.LoadZone(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load timezone")
	}

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	dispatcher := notify.NewDispatcher(notify.Config{
		WebhookURL:   cfg.Notify.WebhookURL,
		WebhookToken: cfg.Notify.WebhookToken,
		SMTP: notify.SMTPConfig{
			Host: cfg.Notify.SMTP.Host,
			Port: cfg.Notify.SMTP.Port,
			User: cfg.Notify.SMTP.User,
			Pass: cfg.Notify.SMTP.Pass,
			To:   cfg.Notify.SMTP.To,
		},
	}, bus, &logger)
	go dispatcher.Start(ctx)

	svc := service.NewBookingService(db, bus, service.Config{
		DefaultMinutes: cfg.Booking.DefaultMinutes,
		DoneFee:        cfg.Booking.DoneFee,
		MaxNameLength:  cfg.Booking.MaxNameLength,
		ListLimitCap:   cfg.Booking.ListLimitCap,
	}, loc, &logger)

	backup := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := api.NewHTTPServer(svc, db, cfg.Server.Port, &logger)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("API server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
