package events

import (
	"time"

	"github.com/spec-kit/triage-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket.created"
	EventTicketTriaged  EventType = "ticket.triaged"
	EventTicketAssigned EventType = "ticket.assigned"
)

// Actor identifies who caused the event. A nil UserID means the system did.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title string `json:"title"`
}

// TicketTriagedPayload payload.
type TicketTriagedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
	Fallback bool                  `json:"fallback"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeUserID string `json:"assignee_user_id"`
}
