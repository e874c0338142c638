package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConsumerConfig describes the consumer group and its dead letter stream.
type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	BatchSize int64
	Block     time.Duration
}

// RedisConsumer reads triage requests through a consumer group.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	logger *zap.Logger
}

// NewRedisConsumer creates the consumer group if it does not exist yet.
func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig, logger *zap.Logger) (*RedisConsumer, error) {
	consumer := &RedisConsumer{client: client, cfg: cfg, logger: logger.With(zap.String("stream", cfg.Stream))}
	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Start from "0" so messages written before the group existed are not skipped.
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read blocks up to the configured duration for new messages. Unparseable
// messages are acknowledged and dropped.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			parsed, parseErr := ParseMessage(raw)
			if parseErr != nil {
				c.logger.Error("dropping unparseable message", zap.String("message_id", raw.ID), zap.Error(parseErr))
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, parsed)
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acknowledges msg and appends a copy with the next attempt number.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	return c.reenqueue(ctx, msg, msg.Attempt+1, errMsg)
}

// Release acknowledges msg and appends a copy with the same attempt number.
// Used when an attempt was interrupted rather than failed.
func (c *RedisConsumer) Release(ctx context.Context, msg Message, errMsg string) error {
	return c.reenqueue(ctx, msg, msg.Attempt, errMsg)
}

func (c *RedisConsumer) reenqueue(ctx context.Context, msg Message, attempt int, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking message for requeue: %w", err)
	}

	values := messageValues(msg, attempt)
	if errMsg != "" {
		values[fieldLastError] = errMsg
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	c.logger.Info("message requeued",
		zap.String("ticket_id", msg.TicketID),
		zap.Int("attempt", attempt),
		zap.String("reason", errMsg))
	return nil
}

// ClaimStale takes over up to count messages that have been pending in the
// group for at least minIdle, e.g. after a consumer died before acking.
// Unparseable claimed messages are acknowledged and dropped.
func (c *RedisConsumer) ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]Message, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		c.logger.Info("reclaiming stale message",
			zap.String("message_id", p.ID),
			zap.String("original_consumer", p.Consumer),
			zap.Duration("idle", p.Idle),
			zap.Int64("deliveries", p.RetryCount))
		ids = append(ids, p.ID)
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim: %w", err)
	}

	messages := make([]Message, 0, len(claimed))
	for _, raw := range claimed {
		parsed, parseErr := ParseMessage(raw)
		if parseErr != nil {
			c.logger.Error("dropping unparseable reclaimed message", zap.String("message_id", raw.ID), zap.Error(parseErr))
			_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
			continue
		}
		messages = append(messages, parsed)
	}
	return messages, nil
}

// SendDLQ acknowledges msg and moves it to the dead letter stream.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := messageValues(msg, msg.Attempt)
	values[fieldError] = errMsg
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	c.logger.Error("message sent to DLQ",
		zap.String("ticket_id", msg.TicketID),
		zap.Int("attempt", msg.Attempt),
		zap.String("final_error", errMsg),
		zap.String("dlq_stream", c.cfg.DLQStream))
	return nil
}

// DeadLetter is a triage request that exhausted its attempts.
type DeadLetter struct {
	ID       string
	TicketID string
	Attempt  int
	Error    string
}

// ListDLQ returns up to count dead letters, newest first.
func ListDLQ(ctx context.Context, client *redis.Client, stream string, count int64) ([]DeadLetter, error) {
	raw, err := client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", stream, err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, entry := range raw {
		msg, err := ParseMessage(entry)
		if err != nil {
			out = append(out, DeadLetter{ID: entry.ID, Error: "unparseable: " + err.Error()})
			continue
		}
		out = append(out, DeadLetter{
			ID:       entry.ID,
			TicketID: msg.TicketID,
			Attempt:  msg.Attempt,
			Error:    parseOptionalString(entry.Values, fieldError),
		})
	}
	return out, nil
}
