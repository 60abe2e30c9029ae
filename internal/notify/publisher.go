package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published on appointment lifecycle changes. The chat/rating
// layer subscribes to these to react to appointment state.
const (
	EventBooked    = "appointment.booked"
	EventAccepted  = "appointment.accepted"
	EventRejected  = "appointment.rejected"
	EventCompleted = "appointment.completed"
	EventCancelled = "appointment.cancelled"
)

// Event is the payload published for every appointment state change.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID int64     `json:"appointmentId"`
	DoctorID      int64     `json:"doctorId"`
	PatientID     int64     `json:"patientId"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher emits appointment lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher broadcasts events as JSON on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if client == nil {
		panic("notify: redis client required")
	}
	if channel == "" {
		channel = "clinic.appointments"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// NoopPublisher drops events. Used when no Redis is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev Event) error { return nil }
