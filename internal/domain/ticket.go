package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusSubmitted TicketStatus = "submitted"
	TicketStatusTriaged   TicketStatus = "triaged"
	TicketStatusAssigned  TicketStatus = "assigned"
)

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ParsePriority validates a raw priority value.
func ParsePriority(raw string) (TicketPriority, bool) {
	switch TicketPriority(strings.ToLower(strings.TrimSpace(raw))) {
	case TicketPriorityLow:
		return TicketPriorityLow, true
	case TicketPriorityMedium:
		return TicketPriorityMedium, true
	case TicketPriorityHigh:
		return TicketPriorityHigh, true
	default:
		return "", false
	}
}

// TriageResult is the AI-derived annotation attached to a ticket.
// Either all fields are set or the ticket carries no result.
type TriageResult struct {
	Summary       string
	Priority      TicketPriority
	HelpfulNotes  string
	RelatedSkills []string
}

// Complete reports whether every field is populated.
func (r TriageResult) Complete() bool {
	if strings.TrimSpace(r.Summary) == "" || strings.TrimSpace(r.HelpfulNotes) == "" {
		return false
	}
	if _, ok := ParsePriority(string(r.Priority)); !ok {
		return false
	}
	return len(r.RelatedSkills) > 0
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	Title          string
	Description    string
	Status         TicketStatus
	CreatedBy      string
	AssignedTo     *string
	Triage         *TriageResult
	TriageFallback bool
	TriagedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
