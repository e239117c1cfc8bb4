package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

// Relay subscribes to the redis event channel and republishes events from
// other processes onto the local hub. Events this process itself mirrored
// are skipped by origin, so local subscribers see each change exactly once.
type Relay struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
	backoff time.Duration
	logger  *logging.Logger
}

func NewRelay(hub *Hub, client *redis.Client, channel, origin string, backoff time.Duration, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  origin,
		backoff: backoff,
		logger:  logger,
	}
}

// Run consumes the channel until ctx is cancelled, resubscribing after a
// fixed backoff when the subscription dies.
func (r *Relay) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		sub := r.client.Subscribe(ctx, r.channel)
		r.consume(ctx, sub.Channel())
		_ = sub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.backoff):
			r.logger.Warn("event relay resubscribing", "channel", r.channel)
		}
	}
}

func (r *Relay) consume(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("discarding malformed relay event", "error", err)
				continue
			}
			if ev.Origin == r.origin {
				continue
			}

			r.hub.Publish(ev)
		}
	}
}
