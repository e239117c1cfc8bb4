package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/digihealth/clinic-scheduler/internal/booking"
	"github.com/digihealth/clinic-scheduler/internal/metrics"
	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

const publishTimeout = 5 * time.Second

// Broadcaster turns committed booking mutations into notifier events: it
// publishes to the local hub and mirrors each event onto the redis channel
// so other API processes can fan it out too. A nil redis client disables the
// cross-process mirror.
type Broadcaster struct {
	hub     *Hub
	redis   *redis.Client
	channel string
	origin  string
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

func NewBroadcaster(hub *Hub, client *redis.Client, channel string, m *metrics.BookingMetrics, logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broadcaster{
		hub:     hub,
		redis:   client,
		channel: channel,
		origin:  uuid.NewString(),
		metrics: m,
		logger:  logger,
	}
}

// Origin identifies this process's events so the relay can skip them.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// PublishAppointment implements booking.EventPublisher. Failures are logged
// and swallowed; notification is best-effort.
func (b *Broadcaster) PublishAppointment(kind string, appt *booking.Appointment) {
	payload, err := marshalAppointment(appt)
	if err != nil {
		b.logger.Error("failed to marshal appointment event", "kind", kind, "error", err)
		return
	}

	occurred := time.Now()

	for _, topic := range []string{TopicAppointments, DoctorTopic(appt.DoctorID)} {
		ev := Event{
			Kind:        kind,
			Topic:       topic,
			Origin:      b.origin,
			Appointment: payload,
			OccurredAt:  occurred,
		}

		b.hub.Publish(ev)
		b.metrics.ObservePublish(kind)

		if b.redis == nil {
			continue
		}

		data, err := json.Marshal(ev)
		if err != nil {
			b.logger.Error("failed to marshal relay event", "kind", kind, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := b.redis.Publish(ctx, b.channel, data).Err(); err != nil {
			b.logger.Warn("failed to mirror event to redis", "kind", kind, "topic", topic, "error", err)
		}
		cancel()
	}
}
