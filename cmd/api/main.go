package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicbook/clinic-scheduler/internal/api/router"
	"github.com/clinicbook/clinic-scheduler/internal/appointments"
	"github.com/clinicbook/clinic-scheduler/internal/auth"
	appconfig "github.com/clinicbook/clinic-scheduler/internal/config"
	"github.com/clinicbook/clinic-scheduler/internal/directory"
	httpmiddleware "github.com/clinicbook/clinic-scheduler/internal/http/middleware"
	"github.com/clinicbook/clinic-scheduler/internal/notify"
	"github.com/clinicbook/clinic-scheduler/internal/observability/metrics"
	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Storage: postgres when configured, in-memory otherwise.
	var (
		dirRepo  directory.Repository
		apptRepo appointments.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dirRepo = directory.NewPostgresRepository(pool)
		apptRepo = appointments.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		dirRepo = directory.NewInMemoryRepository()
		apptRepo = appointments.NewInMemoryRepository()
	}

	// Notification fan-out: redis when configured.
	var events notify.Publisher = notify.NoopPublisher{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		events = notify.NewRedisPublisher(redisClient, cfg.NotifyChannel)
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	service := appointments.NewService(apptRepo, dirRepo, events, bookingMetrics, logger)

	authHandler := auth.NewHandler(dirRepo, logger, cfg.JWTSecret, cfg.TokenTTL, cfg.AdminEmail, cfg.AdminPassHash)
	appointmentsHandler := appointments.NewHandler(service, logger)
	directoryHandler := directory.NewHandler(dirRepo, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AuthHandler:         authHandler,
		AppointmentsHandler: appointmentsHandler,
		DirectoryHandler:    directoryHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:           cfg.JWTSecret,
		RateLimiter:         httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
