package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Producer enqueues triage requests.
type Producer interface {
	Enqueue(ctx context.Context, ticketID, reason string) error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisProducer returns a producer writing to stream.
func NewRedisProducer(client *redis.Client, stream string, logger *zap.Logger) Producer {
	return &redisProducer{client: client, stream: stream, logger: logger}
}

func (p *redisProducer) Enqueue(ctx context.Context, ticketID, reason string) error {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: messageValues(Message{TicketID: ticketID, Reason: reason}, 1),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue ticket %s: %w", ticketID, err)
	}

	p.logger.Info("enqueued ticket for triage",
		zap.String("ticket_id", ticketID),
		zap.String("message_id", id),
		zap.String("reason", reason))
	return nil
}
