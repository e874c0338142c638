package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/events"
	"github.com/spec-kit/triage-desk/internal/queue"
	"github.com/spec-kit/triage-desk/internal/repository"
)

const sweepPageSize = 100

// TicketLister lists tickets matching a filter.
type TicketLister interface {
	List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
}

// Scheduler bridges in-process ticket events to the triage stream.
type Scheduler struct {
	producer queue.Producer
	logger   *zap.Logger
}

// NewScheduler creates the scheduler.
func NewScheduler(producer queue.Producer, logger *zap.Logger) *Scheduler {
	return &Scheduler{producer: producer, logger: logger}
}

// RegisterHandlers subscribes to ticket events.
func (s *Scheduler) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketTriaged, s.logEvent)
	dispatcher.Subscribe(events.EventTicketAssigned, s.logEvent)
}

func (s *Scheduler) handleTicketCreated(ctx context.Context, event events.Event) error {
	return s.producer.Enqueue(ctx, event.TicketID, string(event.Type))
}

func (s *Scheduler) logEvent(_ context.Context, event events.Event) error {
	s.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

// EnqueueSubmitted re-enqueues every ticket still in the submitted status. It
// recovers triage requests whose publish failed after the ticket was stored.
// Tickets already on the stream may be triaged twice; the result is overwritten.
func (s *Scheduler) EnqueueSubmitted(ctx context.Context, tickets TicketLister) (int, error) {
	enqueued := 0
	for offset := 0; ; offset += sweepPageSize {
		page, err := tickets.List(ctx, repository.TicketFilter{
			Statuses: []domain.TicketStatus{domain.TicketStatusSubmitted},
			Limit:    sweepPageSize,
			Offset:   offset,
		})
		if err != nil {
			return enqueued, fmt.Errorf("list submitted tickets: %w", err)
		}
		for _, t := range page {
			if err := s.producer.Enqueue(ctx, t.ID, "sweep"); err != nil {
				return enqueued, fmt.Errorf("enqueue ticket %s: %w", t.ID, err)
			}
			enqueued++
		}
		if len(page) < sweepPageSize {
			break
		}
	}
	if enqueued > 0 {
		s.logger.Info("re-enqueued untriaged tickets", zap.Int("count", enqueued))
	}
	return enqueued, nil
}
