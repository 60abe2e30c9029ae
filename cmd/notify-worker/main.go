package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clinicbook/clinic-scheduler/internal/config"
	"github.com/clinicbook/clinic-scheduler/internal/notify"
	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

// notify-worker consumes appointment lifecycle events and delivers
// notifications. Delivery is currently a structured log line per event; the
// handler is the single place to plug in an outbound channel.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.RedisAddr == "" {
		logger.Error("REDIS_ADDR is required for the notify worker")
		os.Exit(1)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer client.Close()

	listener := notify.NewListener(client, cfg.NotifyChannel, func(ctx context.Context, ev notify.Event) error {
		logger.Info("delivering appointment notification",
			"type", ev.Type,
			"appointment_id", ev.AppointmentID,
			"doctor_id", ev.DoctorID,
			"patient_id", ev.PatientID,
			"status", ev.Status,
		)
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down notify worker...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notify worker stopped", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("notify worker stopped")
}
