package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAnalyzed      EventType = "ticket_analyzed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventSLANearBreach       EventType = "sla_near_breach"
	EventSLABreached         EventType = "sla_breached"
)

// AllEventTypes lists every type a forwarder should subscribe to.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketAnalyzed,
		EventTicketAssigned,
		EventTicketStatusChanged,
		EventSLANearBreach,
		EventSLABreached,
	}
}

// Actor identifies who caused an event. UserID is nil for system actions.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
	System bool    `json:"system"`
}

// SystemActor is used by the workflow and the sweep.
func SystemActor() Actor {
	return Actor{System: true}
}

// UserActor wraps a user id.
func UserActor(userID string) Actor {
	return Actor{UserID: &userID}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, ticketID string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// TicketAnalyzedPayload payload.
type TicketAnalyzedPayload struct {
	RequiredSkills          []string              `json:"required_skills"`
	Priority                domain.TicketPriority `json:"priority"`
	EstimatedResolutionTime float64               `json:"estimated_resolution_time"`
	Fallback                bool                  `json:"fallback"`
	Persisted               bool                  `json:"persisted"`
}

// AssignmentSource tells how an assignee was chosen.
type AssignmentSource string

const (
	AssignmentSkillMatch    AssignmentSource = "skill_match"
	AssignmentAdminFallback AssignmentSource = "admin_fallback"
	AssignmentManual        AssignmentSource = "manual"
)

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID string           `json:"assignee_id"`
	Source     AssignmentSource `json:"source"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// SLAPayload is shared by the near-breach and breach events.
type SLAPayload struct {
	SLADueDate time.Time `json:"sla_due_date"`
	AssignedTo *string   `json:"assigned_to,omitempty"`
	Notified   int       `json:"notified,omitempty"`
}
