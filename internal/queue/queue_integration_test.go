//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/queue"
	"github.com/spec-kit/triage-desk/internal/testutil/containers"
)

type StreamSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	producer queue.Producer
	consumer *queue.RedisConsumer
	cfg      queue.ConsumerConfig
}

func TestStreamSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StreamSuite))
}

func (s *StreamSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cfg = queue.ConsumerConfig{
		Stream:    "triage_test",
		Group:     "workers",
		Consumer:  "c1",
		DLQStream: "triage_test_dlq",
		BatchSize: 10,
		Block:     100 * time.Millisecond,
	}
}

func (s *StreamSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.FlushAll(ctx))
	consumer, err := queue.NewRedisConsumer(ctx, s.redis.Client, s.cfg, zap.NewNop())
	s.Require().NoError(err)
	s.consumer = consumer
	s.producer = queue.NewRedisProducer(s.redis.Client, s.cfg.Stream, zap.NewNop())
}

func (s *StreamSuite) readOne() queue.Message {
	msgs, err := s.consumer.Read(context.Background())
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	return msgs[0]
}

func (s *StreamSuite) TestGroupCreationIsIdempotent() {
	_, err := queue.NewRedisConsumer(context.Background(), s.redis.Client, s.cfg, zap.NewNop())
	s.NoError(err)
}

func (s *StreamSuite) TestEnqueueReadAck() {
	ctx := context.Background()
	s.Require().NoError(s.producer.Enqueue(ctx, "t-1", "ticket.created"))

	msg := s.readOne()
	s.Equal("t-1", msg.TicketID)
	s.Equal(1, msg.Attempt)
	s.Equal("ticket.created", msg.Reason)
	s.Require().NoError(s.consumer.Ack(ctx, msg))

	pending, err := s.redis.Client.XPending(ctx, s.cfg.Stream, s.cfg.Group).Result()
	s.Require().NoError(err)
	s.Zero(pending.Count)

	empty, err := s.consumer.Read(ctx)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *StreamSuite) TestRequeueThenDeadLetter() {
	ctx := context.Background()
	s.Require().NoError(s.producer.Enqueue(ctx, "t-2", "ticket.created"))

	first := s.readOne()
	s.Require().NoError(s.consumer.Requeue(ctx, first, "reasoning service unavailable"))

	second := s.readOne()
	s.Equal("t-2", second.TicketID)
	s.Equal(2, second.Attempt)
	s.Equal("reasoning service unavailable", second.LastError)

	s.Require().NoError(s.consumer.SendDLQ(ctx, second, "gave up"))

	letters, err := queue.ListDLQ(ctx, s.redis.Client, s.cfg.DLQStream, 10)
	s.Require().NoError(err)
	s.Require().Len(letters, 1)
	s.Equal("t-2", letters[0].TicketID)
	s.Equal(2, letters[0].Attempt)
	s.Equal("gave up", letters[0].Error)

	pending, err := s.redis.Client.XPending(ctx, s.cfg.Stream, s.cfg.Group).Result()
	s.Require().NoError(err)
	s.Zero(pending.Count)
}

func (s *StreamSuite) TestUnparseableMessageIsDropped() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.XAdd(ctx, &redis.XAddArgs{Stream: s.cfg.Stream, Values: map[string]any{"junk": "1"}}).Err())

	msgs, err := s.consumer.Read(ctx)
	s.Require().NoError(err)
	s.Empty(msgs)

	pending, err := s.redis.Client.XPending(ctx, s.cfg.Stream, s.cfg.Group).Result()
	s.Require().NoError(err)
	s.Zero(pending.Count)
}

func (s *StreamSuite) TestReleaseKeepsAttempt() {
	ctx := context.Background()
	s.Require().NoError(s.producer.Enqueue(ctx, "t-3", "ticket.created"))

	first := s.readOne()
	s.Require().NoError(s.consumer.Release(ctx, first, "context canceled"))

	again := s.readOne()
	s.Equal("t-3", again.TicketID)
	s.Equal(1, again.Attempt)
	s.Equal("context canceled", again.LastError)
}

func (s *StreamSuite) TestClaimStaleTakesOverAbandonedMessage() {
	ctx := context.Background()
	s.Require().NoError(s.producer.Enqueue(ctx, "t-4", "ticket.created"))

	// c1 reads and never acks, as if it crashed mid-attempt.
	abandoned := s.readOne()

	peerCfg := s.cfg
	peerCfg.Consumer = "c2"
	peer, err := queue.NewRedisConsumer(ctx, s.redis.Client, peerCfg, zap.NewNop())
	s.Require().NoError(err)

	fresh, err := peer.ClaimStale(ctx, time.Minute, 10)
	s.Require().NoError(err)
	s.Empty(fresh)

	time.Sleep(50 * time.Millisecond)
	claimed, err := peer.ClaimStale(ctx, 20*time.Millisecond, 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(abandoned.ID, claimed[0].ID)
	s.Equal("t-4", claimed[0].TicketID)

	owners, err := s.redis.Client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.cfg.Stream, Group: s.cfg.Group, Start: "-", End: "+", Count: 10,
	}).Result()
	s.Require().NoError(err)
	s.Require().Len(owners, 1)
	s.Equal("c2", owners[0].Consumer)

	s.Require().NoError(peer.Ack(ctx, claimed[0]))
	pending, err := s.redis.Client.XPending(ctx, s.cfg.Stream, s.cfg.Group).Result()
	s.Require().NoError(err)
	s.Zero(pending.Count)
}
