package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/clinicbook/clinic-scheduler/pkg/logging"
)

// HandlerFunc processes one appointment lifecycle event.
type HandlerFunc func(ctx context.Context, ev Event) error

// Listener consumes appointment events from the Redis channel and hands each
// one to the configured handler. It is the consumer side of Publisher and
// backs the notification worker.
type Listener struct {
	client  *redis.Client
	channel string
	handler HandlerFunc
	logger  *logging.Logger
}

// NewListener creates a listener for the given channel.
func NewListener(client *redis.Client, channel string, handler HandlerFunc, logger *logging.Logger) *Listener {
	if client == nil {
		panic("notify: redis client required")
	}
	if handler == nil {
		panic("notify: handler required")
	}
	if channel == "" {
		channel = "clinic.appointments"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Listener{client: client, channel: channel, handler: handler, logger: logger}
}

// Run subscribes and processes events until ctx is cancelled. Malformed
// payloads and handler failures are logged and skipped; the subscription
// stays up.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	// force the subscription before consuming so startup errors surface here
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				l.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			if err := l.handler(ctx, ev); err != nil {
				l.logger.Error("event handler failed", "error", err, "type", ev.Type, "appointment_id", ev.AppointmentID)
			}
		}
	}
}
