package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/metrics"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// EventsChannel carries realtime events between server instances
const EventsChannel = "chat:events"

// Envelope is the wire form of a user-addressed event on the redis channel
type Envelope struct {
	UserID  string          `json:"userId"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(userID, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{UserID: userID, Event: event, Payload: raw})
}

// RedisSink fans events out through redis pub/sub so whichever instance
// holds the user's connection can deliver them
type RedisSink struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, channel: EventsChannel, timeout: 2 * time.Second}
}

func (r *RedisSink) Deliver(userID, event string, payload interface{}) {
	body, err := encodeEnvelope(userID, event, payload)
	if err != nil {
		metrics.RealtimeEvents.WithLabelValues(event, "dropped").Inc()
		logger.Error().Err(err).Str("event", event).Msg("failed to encode realtime event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		metrics.RealtimeEvents.WithLabelValues(event, "dropped").Inc()
		logger.Warn().Err(err).Str("event", event).Msg("failed to publish realtime event")
	}
}

// Subscribe relays events from the redis channel to the local sink until ctx
// is cancelled
func Subscribe(ctx context.Context, client *redis.Client, local Sink) {
	sub := client.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	log := logger.Component("realtime.redis")
	log.Info().Str("channel", EventsChannel).Msg("subscribed to realtime events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.UserID == "" {
				log.Warn().Err(err).Msg("discarding malformed realtime envelope")
				continue
			}
			local.Deliver(env.UserID, env.Event, env.Payload)
		}
	}
}
