package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/events"
	"github.com/spec-kit/triage-desk/internal/persistence"
	"github.com/spec-kit/triage-desk/internal/queue"
	"github.com/spec-kit/triage-desk/internal/repository"
	"github.com/spec-kit/triage-desk/internal/triage"
)

// MessageSource is the consumer side of the triage stream.
type MessageSource interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	Release(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// TicketAnalyzer produces a triage outcome for a ticket.
type TicketAnalyzer interface {
	Analyze(ctx context.Context, ticket domain.Ticket) (triage.Outcome, error)
}

// Assigner routes a triaged ticket to a staff member.
type Assigner interface {
	AutoAssign(ctx context.Context, ticketID string, skills []string) (*domain.User, error)
}

// Locker grants exclusive per-ticket processing.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (persistence.ReleaseFunc, bool, error)
}

// Config tunes retry and locking.
type Config struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// TriageWorker consumes ticket.created requests and stores triage results.
type TriageWorker struct {
	source     MessageSource
	tickets    repository.TicketRepository
	analyzer   TicketAnalyzer
	assigner   Assigner
	locker     Locker
	dispatcher events.Dispatcher
	cfg        Config
	logger     *zap.Logger
}

// TriageDependencies bundles collaborators.
type TriageDependencies struct {
	Source     MessageSource
	TicketRepo repository.TicketRepository
	Analyzer   TicketAnalyzer
	Assigner   Assigner
	Locker     Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

var errTicketGone = errors.New("ticket no longer exists")

// NewTriageWorker constructs the worker.
func NewTriageWorker(deps TriageDependencies, cfg Config) *TriageWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &TriageWorker{
		source:     deps.Source,
		tickets:    deps.TicketRepo,
		analyzer:   deps.Analyzer,
		assigner:   deps.Assigner,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		logger:     deps.Logger,
	}
}

// Run reads batches until ctx is cancelled.
func (w *TriageWorker) Run(ctx context.Context) error {
	w.logger.Info("triage worker started", zap.Int("max_attempts", w.cfg.MaxAttempts))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("triage worker stopping")
			return nil
		default:
		}

		if err := w.processOneBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("batch processing error", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *TriageWorker) processOneBatch(ctx context.Context) error {
	messages, err := w.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}
	for _, msg := range messages {
		w.handle(ctx, msg)
	}
	return nil
}

func (w *TriageWorker) handle(ctx context.Context, msg queue.Message) {
	logger := w.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("ticket_id", msg.TicketID),
		zap.Int("attempt", msg.Attempt))

	err := w.processMessageSafe(ctx, msg)
	// Settle the message even when shutdown cancelled the attempt.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	switch {
	case err == nil:
		if ackErr := w.source.Ack(settleCtx, msg); ackErr != nil {
			logger.Warn("failed to ack message", zap.Error(ackErr))
		}
	case errors.Is(err, errTicketGone):
		logger.Warn("dropping triage request for missing ticket")
		if ackErr := w.source.Ack(settleCtx, msg); ackErr != nil {
			logger.Warn("failed to ack message", zap.Error(ackErr))
		}
	case ctx.Err() != nil:
		// Interrupted attempts do not count against the retry budget.
		logger.Warn("triage attempt interrupted; releasing message", zap.Error(err))
		if relErr := w.source.Release(settleCtx, msg, err.Error()); relErr != nil {
			logger.Error("failed to release message", zap.Error(relErr))
		}
	default:
		logger.Error("triage attempt failed", zap.Error(err))
		w.handleFailedMessage(settleCtx, msg, err, logger)
	}
}

func (w *TriageWorker) handleFailedMessage(ctx context.Context, msg queue.Message, err error, logger *zap.Logger) {
	exhausted := msg.Attempt >= w.cfg.MaxAttempts
	var serviceErr *triage.ServiceError
	if errors.As(err, &serviceErr) && !triage.Retryable(serviceErr.Err) {
		exhausted = true
	}

	if exhausted {
		logger.Error("giving up on ticket, sending to DLQ")
		if dlqErr := w.source.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			logger.Error("failed to send to DLQ", zap.Error(dlqErr))
		}
		return
	}

	logger.Warn("requeuing failed triage request")
	if requeueErr := w.source.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		logger.Error("failed to requeue message", zap.Error(requeueErr))
	}
}

func (w *TriageWorker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic recovered in triage",
				zap.Any("panic", r),
				zap.String("message_id", msg.ID),
				zap.String("ticket_id", msg.TicketID))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessTicket(ctx, msg.TicketID)
}

// ProcessTicket runs one triage attempt. Re-running it overwrites the stored result.
func (w *TriageWorker) ProcessTicket(ctx context.Context, ticketID string) error {
	logger := w.logger.With(zap.String("ticket_id", ticketID))

	release, ok, err := w.locker.AcquireLock(ctx, "triage:lock:"+ticketID, w.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire ticket lock: %w", err)
	}
	if !ok {
		logger.Info("ticket is being triaged by another attempt; skipping")
		return nil
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Warn("failed to release ticket lock", zap.Error(relErr))
		}
	}()

	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errTicketGone
		}
		return fmt.Errorf("load ticket: %w", err)
	}

	outcome, err := w.analyzer.Analyze(ctx, *ticket)
	if err != nil {
		return err
	}

	if err := w.tickets.SaveTriage(ctx, ticket.ID, outcome.Result, outcome.Fallback); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errTicketGone
		}
		return fmt.Errorf("save triage: %w", err)
	}
	w.publish(ctx, events.Event{
		Type:     events.EventTicketTriaged,
		TicketID: ticket.ID,
		Payload:  events.TicketTriagedPayload{Priority: outcome.Result.Priority, Fallback: outcome.Fallback},
	})

	assignee, err := w.assigner.AutoAssign(ctx, ticket.ID, outcome.Result.RelatedSkills)
	if err != nil {
		return fmt.Errorf("assign ticket: %w", err)
	}

	fields := []zap.Field{
		zap.String("priority", string(outcome.Result.Priority)),
		zap.Bool("fallback", outcome.Fallback),
	}
	if assignee != nil {
		fields = append(fields, zap.String("assignee_id", assignee.ID))
	}
	logger.Info("ticket triaged", fields...)
	return nil
}

func (w *TriageWorker) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
