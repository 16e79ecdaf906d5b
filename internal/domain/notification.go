package domain

import (
	"strings"

	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// NotificationType discriminates notification payloads.
type NotificationType string

const (
	NotificationAssignment NotificationType = "assignment"
	NotificationEscalation NotificationType = "escalation"
	NotificationSLAWarning NotificationType = "sla-warning"
	NotificationResolution NotificationType = "resolution"
)

// Notification is a message to one recipient about one ticket.
// Which optional principals are required depends on Type; see Validate.
type Notification struct {
	Type             NotificationType
	Ticket           *Ticket
	Recipient        *User
	Assignee         *User
	Assigner         *User
	Escalator        *User
	Creator          *User
	EscalationReason string
}

// NewAssignmentNotification addresses the assignee; assigner is nil for automatic assignment.
func NewAssignmentNotification(ticket *Ticket, assignee, assigner, creator *User) Notification {
	return Notification{
		Type:      NotificationAssignment,
		Ticket:    ticket,
		Recipient: assignee,
		Assignee:  assignee,
		Assigner:  assigner,
		Creator:   creator,
	}
}

// NewEscalationNotification addresses the user the ticket was escalated to.
func NewEscalationNotification(ticket *Ticket, escalatedTo, escalator *User, reason string) Notification {
	return Notification{
		Type:             NotificationEscalation,
		Ticket:           ticket,
		Recipient:        escalatedTo,
		Assignee:         escalatedTo,
		Escalator:        escalator,
		EscalationReason: reason,
	}
}

// NewSLAWarningNotification addresses a single moderator or admin.
func NewSLAWarningNotification(ticket *Ticket, recipient, assignee *User) Notification {
	return Notification{
		Type:      NotificationSLAWarning,
		Ticket:    ticket,
		Recipient: recipient,
		Assignee:  assignee,
	}
}

// NewResolutionNotification addresses the ticket creator.
func NewResolutionNotification(ticket *Ticket, creator, assignee *User) Notification {
	return Notification{
		Type:      NotificationResolution,
		Ticket:    ticket,
		Recipient: creator,
		Creator:   creator,
		Assignee:  assignee,
	}
}

// Validate checks that the fields required by Type are present.
func (n Notification) Validate() error {
	details := map[string]any{}
	if n.Ticket == nil || n.Ticket.ID == "" {
		details["ticket"] = "required"
	}
	if n.Recipient == nil || strings.TrimSpace(n.Recipient.Email) == "" {
		details["recipient"] = "recipient with email required"
	}
	switch n.Type {
	case NotificationAssignment:
		if n.Assignee == nil {
			details["assignee"] = "required"
		}
	case NotificationEscalation:
		if n.Escalator == nil {
			details["escalator"] = "required"
		}
		if n.Assignee == nil {
			details["assignee"] = "required"
		}
	case NotificationSLAWarning, NotificationResolution:
	default:
		details["type"] = "unknown notification type"
	}
	if len(details) > 0 {
		details["notification_type"] = string(n.Type)
		return apperrors.NewValidationError("invalid notification", details)
	}
	return nil
}
