package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Type        string                `json:"type"`
	CreatedBy   string                `json:"createdBy"`
}

// RunWorkflowRequest optionally overrides the stored ticket fields sent to analysis.
type RunWorkflowRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Type        string                `json:"type"`
	CreatedBy   string                `json:"createdBy"`
}

// TicketAssignedRequest reports a human assignment.
type TicketAssignedRequest struct {
	AssignedTo string `json:"assignedTo"`
	AssignedBy string `json:"assignedBy"`
}

// TicketEscalatedRequest reports an escalation.
type TicketEscalatedRequest struct {
	EscalatedBy string `json:"escalatedBy"`
	EscalatedTo string `json:"escalatedTo"`
	Reason      string `json:"reason"`
}

// TransitionStatusRequest changes a ticket's status.
type TransitionStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	ActorID string              `json:"actorId"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID                      string                `json:"id"`
	Title                   string                `json:"title"`
	Description             string                `json:"description"`
	Status                  domain.TicketStatus   `json:"status"`
	Priority                domain.TicketPriority `json:"priority"`
	Type                    string                `json:"type"`
	RequiredSkills          []string              `json:"requiredSkills"`
	AssignedTo              *string               `json:"assignedTo"`
	CreatedBy               string                `json:"createdBy"`
	AINotes                 string                `json:"aiNotes,omitempty"`
	AIResponse              string                `json:"aiResponse,omitempty"`
	AIProcessed             bool                  `json:"aiProcessed"`
	AIProcessingError       *string               `json:"aiProcessingError,omitempty"`
	SLADueDate              time.Time             `json:"slaDueDate"`
	SLABreached             bool                  `json:"slaBreached"`
	EstimatedResolutionTime float64               `json:"estimatedResolutionTime"`
	ActualResolutionTime    *float64              `json:"actualResolutionTime,omitempty"`
	CreatedAt               time.Time             `json:"createdAt"`
	UpdatedAt               time.Time             `json:"updatedAt"`
	ResolvedAt              *time.Time            `json:"resolvedAt,omitempty"`
	ClosedAt                *time.Time            `json:"closedAt,omitempty"`
	EscalatedAt             *time.Time            `json:"escalatedAt,omitempty"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	skills := t.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	return TicketResponse{
		ID:                      t.ID,
		Title:                   t.Title,
		Description:             t.Description,
		Status:                  t.Status,
		Priority:                t.Priority,
		Type:                    t.Type,
		RequiredSkills:          skills,
		AssignedTo:              t.AssignedTo,
		CreatedBy:               t.CreatedBy,
		AINotes:                 t.AINotes,
		AIResponse:              t.AIResponse,
		AIProcessed:             t.AIProcessed,
		AIProcessingError:       t.AIProcessingError,
		SLADueDate:              t.SLADueDate,
		SLABreached:             t.SLABreached,
		EstimatedResolutionTime: t.EstimatedResolutionTime,
		ActualResolutionTime:    t.ActualResolutionTime,
		CreatedAt:               t.CreatedAt,
		UpdatedAt:               t.UpdatedAt,
		ResolvedAt:              t.ResolvedAt,
		ClosedAt:                t.ClosedAt,
		EscalatedAt:             t.EscalatedAt,
	}
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID        string         `json:"id"`
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	ActorID   *string        `json:"actorId,omitempty"`
	System    bool           `json:"system"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewTicketHistoryResponse maps audit entries.
func NewTicketHistoryResponse(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:        e.ID,
			EventID:   e.EventID,
			EventType: e.EventType,
			ActorID:   e.ActorID,
			System:    e.System,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
