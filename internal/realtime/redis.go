package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
)

// RedisFanout publishes pings to a Redis channel and relays everything
// received on that channel, including its own messages, to the local hub.
type RedisFanout struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     logrus.FieldLogger
}

func NewRedisFanout(client *redis.Client, channel string, hub *Hub, log logrus.FieldLogger) *RedisFanout {
	return &RedisFanout{client: client, channel: channel, hub: hub, log: log}
}

// PublishLocation sends the ping to every instance. If Redis is unreachable
// the ping still reaches local subscribers.
func (f *RedisFanout) PublishLocation(ctx context.Context, loc *models.Location, bus *models.Bus) {
	ev := NewLocationEvent(loc, bus)
	payload, err := json.Marshal(ev)
	if err != nil {
		f.log.WithError(err).Error("failed to encode location event")
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.log.WithError(err).Warn("redis publish failed; delivering locally")
		f.hub.Broadcast(ev)
	}
}

// Run relays channel messages to the hub until ctx is cancelled.
func (f *RedisFanout) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	f.log.WithField("channel", f.channel).Info("redis location fan-out subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev LocationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.log.WithError(err).Warn("discarding malformed location event")
				continue
			}
			f.hub.Broadcast(ev)
		}
	}
}
