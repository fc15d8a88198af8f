// Package broker provides durable message transport over Redis Streams.
package broker

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/config"
)

const payloadField = "payload"

// Message is one delivered queue entry. ID is the broker-assigned entry ID
// used for acknowledgement.
type Message struct {
	ID   string
	Body []byte
}

// Queue defines the broker operations used by the pipeline
type Queue interface {
	// EnsureTopic creates the topic and consumer group if they do not exist
	EnsureTopic(ctx context.Context, topic string) error
	// Publish appends a message to the topic
	Publish(ctx context.Context, topic string, body []byte) error
	// Poll blocks up to the configured interval for one message. A quiet
	// topic yields (nil, nil).
	Poll(ctx context.Context, topic string) (*Message, error)
	// Ack marks a delivered message as processed
	Ack(ctx context.Context, topic string, messageID string) error
	// Ping verifies broker connectivity
	Ping(ctx context.Context) error
	// Close releases the underlying connection
	Close() error
}

// RedisQueue implements Queue on Redis Streams with consumer groups
type RedisQueue struct {
	client       *redis.Client
	group        string
	consumerName string
	blockFor     time.Duration
	logger       *logrus.Logger
}

// NewRedisQueue connects to Redis and returns a Queue implementation
func NewRedisQueue(ctx context.Context, cfg *config.BrokerConfig, logger *logrus.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	name := cfg.ConsumerName
	if name == "" {
		host, _ := os.Hostname()
		name = fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
	}

	return &RedisQueue{
		client:       client,
		group:        cfg.ConsumerGroup,
		consumerName: name,
		blockFor:     cfg.PollTimeout(),
		logger:       logger,
	}, nil
}

// EnsureTopic creates the stream and consumer group, tolerating an existing group
func (q *RedisQueue) EnsureTopic(ctx context.Context, topic string) error {
	err := q.client.XGroupCreateMkStream(ctx, topic, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", q.group, topic, err)
	}
	return nil
}

// Publish appends one message to the topic stream
func (q *RedisQueue) Publish(ctx context.Context, topic string, body []byte) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{payloadField: body},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Poll reads one pending message for this consumer, blocking up to the
// configured interval. Timing out on a quiet topic is not an error.
func (q *RedisQueue) Poll(ctx context.Context, topic string) (*Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumerName,
		Streams:  []string{topic, ">"},
		Count:    1,
		Block:    q.blockFor,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from %s: %w", topic, err)
	}

	for _, stream := range streams {
		for _, entry := range stream.Messages {
			body, ok := entry.Values[payloadField].(string)
			if !ok {
				// Malformed entry, drop it so it cannot wedge the group
				q.logger.WithField("message_id", entry.ID).Warn("Discarding entry without payload field")
				if ackErr := q.Ack(ctx, topic, entry.ID); ackErr != nil {
					return nil, ackErr
				}
				continue
			}
			return &Message{ID: entry.ID, Body: []byte(body)}, nil
		}
	}
	return nil, nil
}

// Ack acknowledges a delivered message
func (q *RedisQueue) Ack(ctx context.Context, topic string, messageID string) error {
	if err := q.client.XAck(ctx, topic, q.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack %s on %s: %w", messageID, topic, err)
	}
	return nil
}

// Ping verifies broker connectivity
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
