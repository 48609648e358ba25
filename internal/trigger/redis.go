package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/forecast-flow/internal/config"
	"github.com/redis/go-redis/v9"
)

// RefreshPayload is the message published when new actuals are loaded.
const RefreshPayload = "initiate"

// ErrSubscriptionClosed is returned when the pub/sub channel closes while
// the listener is still running.
var ErrSubscriptionClosed = errors.New("subscription closed")

// NewRedisClient creates a client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// subscription is the part of *redis.PubSub the source uses.
type subscription interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisSource emits a signal for every message on a pub/sub topic.
type RedisSource struct {
	subscribe func(ctx context.Context, topic string) subscription
	topic     string
}

// NewRedisSource subscribes through client when Listen is called.
func NewRedisSource(client *redis.Client, topic string) *RedisSource {
	return &RedisSource{
		topic: topic,
		subscribe: func(ctx context.Context, topic string) subscription {
			return client.Subscribe(ctx, topic)
		},
	}
}

// Name implements Source.
func (r *RedisSource) Name() string { return "redis" }

// Listen subscribes, waits for the subscription to be confirmed and then
// forwards messages until ctx is canceled.
func (r *RedisSource) Listen(ctx context.Context, offer func(Signal)) error {
	sub := r.subscribe(ctx, r.topic)
	defer func() { _ = sub.Close() }()

	confirmation, err := sub.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", r.topic, err)
	}
	if s, ok := confirmation.(*redis.Subscription); ok {
		slog.Info("Subscribed to topic", "topic", s.Channel, "kind", s.Kind)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("%w: %s", ErrSubscriptionClosed, r.topic)
			}
			slog.Debug("Received message", "topic", msg.Channel, "payload", msg.Payload)
			offer(Signal{Source: r.Name(), Payload: msg.Payload, At: time.Now()})
		}
	}
}

// Publisher is satisfied by *redis.Client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publish announces that new actuals are available and returns the number
// of subscribers that received it.
func Publish(ctx context.Context, p Publisher, topic string) (int64, error) {
	payload, err := json.Marshal(RefreshPayload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}
	receivers, err := p.Publish(ctx, topic, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return receivers, nil
}
