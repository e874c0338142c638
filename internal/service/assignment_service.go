package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/events"
	"github.com/spec-kit/triage-desk/internal/repository"
)

// adminCandidateLimit bounds the admin fallback pool.
const adminCandidateLimit = 1000

// AssignmentService picks an assignee for a triaged ticket.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// AutoAssign assigns the ticket to a moderator whose skills overlap the triage
// skills, falling back to any admin. It returns nil when nobody is eligible and
// the ticket stays triaged.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticketID string, skills []string) (*domain.User, error) {
	candidates, err := s.candidates(ctx, skills)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Warn("no eligible assignee", zap.String("ticket_id", ticketID), zap.Strings("skills", skills))
		return nil, nil
	}

	assignee := candidates[selectIndex(ticketID, len(candidates))]
	if err := s.tickets.Assign(ctx, ticketID, assignee.ID); err != nil {
		return nil, fmt.Errorf("assign ticket %s: %w", ticketID, err)
	}
	s.publishAssignmentEvent(ctx, ticketID, assignee.ID)
	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticketID),
		zap.String("assignee_id", assignee.ID),
		zap.String("assignee_role", string(assignee.Role)))
	return &assignee, nil
}

func (s *AssignmentService) candidates(ctx context.Context, skills []string) ([]domain.User, error) {
	if len(skills) > 0 {
		moderators, err := s.users.ListBySkills(ctx, []domain.Role{domain.RoleModerator}, skills)
		if err != nil {
			return nil, fmt.Errorf("list moderators: %w", err)
		}
		if len(moderators) > 0 {
			return moderators, nil
		}
	}
	role := domain.RoleAdmin
	admins, err := s.users.List(ctx, repository.UserFilter{Role: &role, Limit: adminCandidateLimit})
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// selectIndex spreads tickets across candidates deterministically.
func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}

func (s *AssignmentService) publishAssignmentEvent(ctx context.Context, ticketID, assigneeID string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAssigned,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload:   events.TicketAssignedPayload{AssigneeUserID: assigneeID},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish ticket assigned", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}
