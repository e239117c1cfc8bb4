package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/digihealth/clinic-scheduler/internal/api"
	"github.com/digihealth/clinic-scheduler/internal/booking"
	"github.com/digihealth/clinic-scheduler/internal/config"
	"github.com/digihealth/clinic-scheduler/internal/db"
	"github.com/digihealth/clinic-scheduler/internal/metrics"
	"github.com/digihealth/clinic-scheduler/internal/notifier"
	"github.com/digihealth/clinic-scheduler/internal/policy"
	redisclient "github.com/digihealth/clinic-scheduler/internal/redis"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	schedules := schedule.NewPgStore(pgPool)
	policies := policy.NewPgStore(pgPool)

	hub := notifier.NewHub(bookingMetrics, logger.Named("hub"))
	broadcaster := notifier.NewBroadcaster(hub, rdb, cfg.EventChannel, bookingMetrics, logger.Named("broadcaster"))
	relay := notifier.NewRelay(hub, rdb, cfg.EventChannel, broadcaster.Origin(), cfg.RelayBackoff, logger.Named("relay"))
	go relay.Run(rootCtx)

	svc := booking.NewService(repo, locker, schedules, policies, broadcaster, bookingMetrics, logger.Named("booking"))

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Schedules: schedules,
		Policies:  policies,
		Hub:       hub,
		PgPool:    pgPool,
		Redis:     rdb,
		Registry:  registry,
		Env:       cfg.Env,
		Version:   version,
		Logger:    logger.Named("http"),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}
