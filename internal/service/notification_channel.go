package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// NotificationChannel carries committed notifications between API nodes.
// The database write is not a channel; it always happens in Dispatch.
type NotificationChannel interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	// Consume blocks until ctx is cancelled, handing every received payload to handle.
	Consume(ctx context.Context, handle func([]byte)) error
}

type redisChannel struct {
	client *redis.Client
	topic  string
}

// NewRedisChannel publishes notifications on a redis pub/sub topic derived from prefix.
func NewRedisChannel(client *redis.Client, prefix string) NotificationChannel {
	return &redisChannel{client: client, topic: channelTopic(prefix, ":")}
}

func (c *redisChannel) Name() string { return "redis" }

func (c *redisChannel) Publish(ctx context.Context, payload []byte) error {
	return c.client.Publish(ctx, c.topic, payload).Err()
}

func (c *redisChannel) Consume(ctx context.Context, handle func([]byte)) error {
	pubsub := c.client.Subscribe(ctx, c.topic)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		handle([]byte(msg.Payload))
	}
}

type natsChannel struct {
	conn    *nats.Conn
	subject string
}

// NewNATSChannel publishes notifications on a NATS subject derived from prefix.
func NewNATSChannel(conn *nats.Conn, prefix string) NotificationChannel {
	return &natsChannel{conn: conn, subject: channelTopic(prefix, ".")}
}

func (c *natsChannel) Name() string { return "nats" }

func (c *natsChannel) Publish(_ context.Context, payload []byte) error {
	return c.conn.Publish(c.subject, payload)
}

// Consume uses a plain subscription: every node must see every event to feed its own stream clients.
func (c *natsChannel) Consume(ctx context.Context, handle func([]byte)) error {
	sub, err := c.conn.Subscribe(c.subject, func(msg *nats.Msg) {
		handle(msg.Data)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return sub.Drain()
}

func channelTopic(prefix, separator string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":.")
	if prefix == "" {
		prefix = "relawan"
	}
	prefix = strings.NewReplacer(":", separator, ".", separator).Replace(prefix)
	return prefix + separator + "notifications"
}
