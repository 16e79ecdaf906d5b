package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusEscalated  TicketStatus = "escalated"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusEscalated:
		return true
	}
	return false
}

// Workable reports whether the ticket still counts toward workload and SLA tracking.
func (s TicketStatus) Workable() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// WorkableStatuses lists statuses counted as open work.
func WorkableStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusOpen, TicketStatusInProgress}
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ParsePriority normalizes free text into a priority.
func ParsePriority(raw string) (TicketPriority, bool) {
	p := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}

const (
	MinTitleLength       = 5
	MinDescriptionLength = 10
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                      string
	Title                   string
	Description             string
	Status                  TicketStatus
	Priority                TicketPriority
	Type                    string
	RequiredSkills          []string
	AssignedTo              *string
	CreatedBy               string
	AINotes                 string
	AIResponse              string
	AIProcessed             bool
	AIProcessingError       *string
	SLADueDate              time.Time
	SLABreached             bool
	EstimatedResolutionTime float64
	ActualResolutionTime    *float64
	CreatedAt               time.Time
	UpdatedAt               time.Time
	ResolvedAt              *time.Time
	ClosedAt                *time.Time
	EscalatedAt             *time.Time
}

// Validate checks the invariants enforced on every save.
func (t *Ticket) Validate() error {
	details := map[string]any{}
	if len([]rune(strings.TrimSpace(t.Title))) < MinTitleLength {
		details["title"] = "must be at least 5 characters"
	}
	if len([]rune(strings.TrimSpace(t.Description))) < MinDescriptionLength {
		details["description"] = "must be at least 10 characters"
	}
	if !t.Status.Valid() {
		details["status"] = "unknown status"
	}
	if !t.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if strings.TrimSpace(t.CreatedBy) == "" {
		details["created_by"] = "required"
	}
	if t.SLADueDate.IsZero() {
		details["sla_due_date"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

// IsAssigned reports whether the ticket has an assignee.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedTo != nil && *t.AssignedTo != ""
}
