package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"groupchat-service/internal/models"
)

const channelPrefix = "chat-events:"

// RedisBridge publishes events through Redis pub/sub so that subscribers
// connected to any instance receive them. Incoming events feed the local hub.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
	ready  chan struct{}
}

// NewRedisBridge connects to redisURL and wraps hub.
func NewRedisBridge(redisURL string, hub *Hub, logger zerolog.Logger) (*RedisBridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisBridge{
		client: client,
		hub:    hub,
		logger: logger.With().Str("component", "redis_bridge").Logger(),
		ready:  make(chan struct{}),
	}, nil
}

func (b *RedisBridge) Subscribe(chatID string) *Subscriber { return b.hub.Subscribe(chatID) }

func (b *RedisBridge) Unsubscribe(sub *Subscriber) { b.hub.Unsubscribe(sub) }

// Publish sends event to every instance. When Redis is unavailable the event
// is still delivered locally and the error is returned.
func (b *RedisBridge) Publish(ctx context.Context, event models.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+event.ChatID, payload).Err(); err != nil {
		b.hub.Deliver(event)
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ready is closed once Run is receiving events.
func (b *RedisBridge) Ready() <-chan struct{} { return b.ready }

// Run relays events from Redis to the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	close(b.ready)
	b.logger.Info().Msg("relaying chat events from redis")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("discarding malformed event")
				continue
			}
			b.hub.Deliver(event)
		}
	}
}

// Close releases the Redis client.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}
