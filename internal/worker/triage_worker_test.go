package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/events"
	"github.com/spec-kit/triage-desk/internal/persistence"
	"github.com/spec-kit/triage-desk/internal/queue"
	"github.com/spec-kit/triage-desk/internal/repository"
	"github.com/spec-kit/triage-desk/internal/triage"
)

type stubSource struct {
	acked     []string
	requeued  []string
	released  []string
	deadLetts []string
}

func (s *stubSource) Read(context.Context) ([]queue.Message, error) { return nil, nil }
func (s *stubSource) Ack(_ context.Context, m queue.Message) error {
	s.acked = append(s.acked, m.ID)
	return nil
}
func (s *stubSource) Requeue(_ context.Context, m queue.Message, _ string) error {
	s.requeued = append(s.requeued, m.ID)
	return nil
}
func (s *stubSource) Release(_ context.Context, m queue.Message, _ string) error {
	s.released = append(s.released, m.ID)
	return nil
}
func (s *stubSource) SendDLQ(_ context.Context, m queue.Message, _ string) error {
	s.deadLetts = append(s.deadLetts, m.ID)
	return nil
}

type stubTickets struct {
	repository.TicketRepository
	ticket   *domain.Ticket
	saved    []domain.TriageResult
	fallback bool
}

func (s *stubTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if s.ticket == nil || s.ticket.ID != id {
		return nil, pgx.ErrNoRows
	}
	t := *s.ticket
	return &t, nil
}

func (s *stubTickets) SaveTriage(_ context.Context, _ string, result domain.TriageResult, fallback bool) error {
	s.saved = append(s.saved, result)
	s.fallback = fallback
	return nil
}

type analyzerFunc func(ctx context.Context, t domain.Ticket) (triage.Outcome, error)

func (f analyzerFunc) Analyze(ctx context.Context, t domain.Ticket) (triage.Outcome, error) {
	return f(ctx, t)
}

type stubAssigner struct {
	calls  int
	skills []string
	err    error
}

func (s *stubAssigner) AutoAssign(_ context.Context, _ string, skills []string) (*domain.User, error) {
	s.calls++
	s.skills = skills
	if s.err != nil {
		return nil, s.err
	}
	return &domain.User{ID: "mod-1", Role: domain.RoleModerator}, nil
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memoryLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (persistence.ReleaseFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, true, nil
}

type fixture struct {
	source     *stubSource
	tickets    *stubTickets
	assigner   *stubAssigner
	locker     *memoryLocker
	dispatcher events.Dispatcher
	published  []events.Event
	worker     *TriageWorker
}

func newFixture(analyze analyzerFunc) *fixture {
	f := &fixture{
		source:     &stubSource{},
		tickets:    &stubTickets{ticket: &domain.Ticket{ID: "t-1", Title: "Login broken", Description: "Cannot sign in", Status: domain.TicketStatusSubmitted}},
		assigner:   &stubAssigner{},
		locker:     &memoryLocker{},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.dispatcher.Subscribe(events.EventTicketTriaged, func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	})
	f.worker = NewTriageWorker(TriageDependencies{
		Source:     f.source,
		TicketRepo: f.tickets,
		Analyzer:   analyze,
		Assigner:   f.assigner,
		Locker:     f.locker,
		Dispatcher: f.dispatcher,
		Logger:     zap.NewNop(),
	}, Config{MaxAttempts: 3, LockTTL: time.Minute})
	return f
}

func msg(attempt int) queue.Message {
	return queue.Message{ID: "1-0", TicketID: "t-1", Attempt: attempt}
}

func TestTriageWorker(t *testing.T) {
	ctx := context.Background()
	parsed := triage.Outcome{Result: domain.TriageResult{
		Summary: "s", Priority: domain.TicketPriorityHigh, HelpfulNotes: "n", RelatedSkills: []string{"Auth"},
	}}

	t.Run("success saves, assigns and acks", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) { return parsed, nil })

		f.worker.handle(ctx, msg(1))

		require.Len(t, f.tickets.saved, 1)
		assert.Equal(t, parsed.Result, f.tickets.saved[0])
		assert.False(t, f.tickets.fallback)
		assert.Equal(t, []string{"Auth"}, f.assigner.skills)
		assert.Equal(t, []string{"1-0"}, f.source.acked)
		require.Len(t, f.published, 1)
		assert.Equal(t, "t-1", f.published[0].TicketID)
		assert.Empty(t, f.locker.held)
	})

	t.Run("fallback outcome is stored as fallback", func(t *testing.T) {
		f := newFixture(func(_ context.Context, tk domain.Ticket) (triage.Outcome, error) {
			return triage.Outcome{Result: triage.Fallback(tk.Title), Fallback: true}, nil
		})

		f.worker.handle(ctx, msg(1))

		require.Len(t, f.tickets.saved, 1)
		assert.True(t, f.tickets.fallback)
		assert.Equal(t, "Support ticket: Login broken", f.tickets.saved[0].Summary)
		assert.Equal(t, []string{"General Support"}, f.assigner.skills)
	})

	t.Run("service error is requeued without storing a result", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) {
			return triage.Outcome{}, &triage.ServiceError{Err: errors.New("connection refused")}
		})

		f.worker.handle(ctx, msg(1))

		assert.Empty(t, f.tickets.saved)
		assert.Equal(t, []string{"1-0"}, f.source.requeued)
		assert.Empty(t, f.source.deadLetts)
	})

	t.Run("last attempt goes to the DLQ", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) {
			return triage.Outcome{}, &triage.ServiceError{Err: errors.New("connection refused")}
		})

		f.worker.handle(ctx, msg(3))

		assert.Empty(t, f.source.requeued)
		assert.Equal(t, []string{"1-0"}, f.source.deadLetts)
	})

	t.Run("non retryable service error goes straight to the DLQ", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) {
			return triage.Outcome{}, &triage.ServiceError{Err: &openai.Error{StatusCode: 401}}
		})

		f.worker.handle(ctx, msg(1))

		assert.Equal(t, []string{"1-0"}, f.source.deadLetts)
	})

	t.Run("missing ticket is dropped", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) { return parsed, nil })
		f.tickets.ticket = nil

		f.worker.handle(ctx, msg(1))

		assert.Equal(t, []string{"1-0"}, f.source.acked)
		assert.Empty(t, f.source.requeued)
	})

	t.Run("panic is recovered and retried", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) { panic("boom") })

		assert.NotPanics(t, func() { f.worker.handle(ctx, msg(1)) })
		assert.Equal(t, []string{"1-0"}, f.source.requeued)
		assert.Empty(t, f.locker.held)
	})

	t.Run("locked ticket is skipped", func(t *testing.T) {
		calls := 0
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) {
			calls++
			return parsed, nil
		})
		_, ok, err := f.locker.AcquireLock(ctx, "triage:lock:t-1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		f.worker.handle(ctx, msg(1))

		assert.Equal(t, 0, calls)
		assert.Equal(t, []string{"1-0"}, f.source.acked)
	})

	t.Run("re-running overwrites the previous result", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) { return parsed, nil })

		require.NoError(t, f.worker.ProcessTicket(ctx, "t-1"))
		require.NoError(t, f.worker.ProcessTicket(ctx, "t-1"))
		assert.Len(t, f.tickets.saved, 2)
		assert.Equal(t, 2, f.assigner.calls)
	})

	t.Run("shutdown mid-attempt releases the message at the same attempt", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		f := newFixture(func(c context.Context, _ domain.Ticket) (triage.Outcome, error) {
			cancel()
			return triage.Outcome{}, &triage.ServiceError{Err: c.Err()}
		})

		f.worker.handle(cctx, msg(3))

		assert.Equal(t, []string{"1-0"}, f.source.released)
		assert.Empty(t, f.source.deadLetts)
		assert.Empty(t, f.source.requeued)
		assert.Empty(t, f.source.acked)
		assert.Empty(t, f.tickets.saved)
		assert.Empty(t, f.locker.held)
	})

	t.Run("cancelled provider call outside shutdown is retried", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) {
			return triage.Outcome{}, &triage.ServiceError{Err: context.Canceled}
		})

		f.worker.handle(ctx, msg(1))

		assert.Equal(t, []string{"1-0"}, f.source.requeued)
		assert.Empty(t, f.source.deadLetts)
	})

	t.Run("assignment failure retries the attempt", func(t *testing.T) {
		f := newFixture(func(context.Context, domain.Ticket) (triage.Outcome, error) { return parsed, nil })
		f.assigner.err = errors.New("db down")

		f.worker.handle(ctx, msg(1))

		assert.Equal(t, []string{"1-0"}, f.source.requeued)
	})
}

type recordingProducer struct {
	tickets []string
}

func (p *recordingProducer) Enqueue(_ context.Context, ticketID, _ string) error {
	p.tickets = append(p.tickets, ticketID)
	return nil
}

func TestSchedulerEnqueuesCreatedTickets(t *testing.T) {
	producer := &recordingProducer{}
	dispatcher := events.NewInMemoryDispatcher()
	NewScheduler(producer, zap.NewNop()).RegisterHandlers(dispatcher)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: "t-7"}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketAssigned, TicketID: "t-7"}))
	assert.Equal(t, []string{"t-7"}, producer.tickets)
}

type pagedTickets struct {
	all     []domain.Ticket
	filters []repository.TicketFilter
}

func (p *pagedTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	p.filters = append(p.filters, filter)
	if filter.Offset >= len(p.all) {
		return nil, nil
	}
	end := min(filter.Offset+filter.Limit, len(p.all))
	return p.all[filter.Offset:end], nil
}

func TestSchedulerEnqueueSubmitted(t *testing.T) {
	t.Run("enqueues every submitted ticket across pages", func(t *testing.T) {
		lister := &pagedTickets{}
		for i := range sweepPageSize + 5 {
			lister.all = append(lister.all, domain.Ticket{ID: fmt.Sprintf("t-%d", i)})
		}
		producer := &recordingProducer{}

		n, err := NewScheduler(producer, zap.NewNop()).EnqueueSubmitted(context.Background(), lister)

		require.NoError(t, err)
		assert.Equal(t, sweepPageSize+5, n)
		assert.Len(t, producer.tickets, sweepPageSize+5)
		require.Len(t, lister.filters, 2)
		assert.Equal(t, []domain.TicketStatus{domain.TicketStatusSubmitted}, lister.filters[0].Statuses)
		assert.Equal(t, sweepPageSize, lister.filters[1].Offset)
	})

	t.Run("nothing submitted enqueues nothing", func(t *testing.T) {
		producer := &recordingProducer{}

		n, err := NewScheduler(producer, zap.NewNop()).EnqueueSubmitted(context.Background(), &pagedTickets{})

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, producer.tickets)
	})
}
