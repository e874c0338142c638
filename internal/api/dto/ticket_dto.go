package dto

import (
	"time"

	"github.com/spec-kit/triage-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TriageResponse is the stored AI annotation.
type TriageResponse struct {
	Summary       string                `json:"summary"`
	Priority      domain.TicketPriority `json:"priority"`
	HelpfulNotes  string                `json:"helpfulNotes"`
	RelatedSkills []string              `json:"relatedSkills"`
	Fallback      bool                  `json:"fallback"`
	TriagedAt     *time.Time            `json:"triagedAt,omitempty"`
}

// TicketResponse represents a ticket with its triage result when present.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	CreatedBy   string              `json:"createdBy"`
	AssignedTo  *string             `json:"assignedTo"`
	Triage      *TriageResponse     `json:"triage"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		CreatedBy:   ticket.CreatedBy,
		AssignedTo:  ticket.AssignedTo,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
	if ticket.Triage != nil {
		resp.Triage = &TriageResponse{
			Summary:       ticket.Triage.Summary,
			Priority:      ticket.Triage.Priority,
			HelpfulNotes:  ticket.Triage.HelpfulNotes,
			RelatedSkills: ticket.Triage.RelatedSkills,
			Fallback:      ticket.TriageFallback,
			TriagedAt:     ticket.TriagedAt,
		}
	}
	return resp
}
