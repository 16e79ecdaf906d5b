// Package notify renders and delivers ticket notifications.
package notify

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// Notifier delivers one notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Sender delivers an already flattened message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is the transport form of a notification: every principal is reduced
// to the fields the templates need so it can cross a queue.
type Message struct {
	ID               string                  `json:"id"`
	Type             domain.NotificationType `json:"type"`
	To               string                  `json:"to"`
	RecipientName    string                  `json:"recipient_name"`
	TicketID         string                  `json:"ticket_id"`
	TicketTitle      string                  `json:"ticket_title"`
	TicketStatus     domain.TicketStatus     `json:"ticket_status"`
	TicketPriority   domain.TicketPriority   `json:"ticket_priority"`
	SLADueDate       time.Time               `json:"sla_due_date"`
	AIResponse       string                  `json:"ai_response,omitempty"`
	AssigneeName     string                  `json:"assignee_name,omitempty"`
	AssignerName     string                  `json:"assigner_name,omitempty"`
	EscalatorName    string                  `json:"escalator_name,omitempty"`
	CreatorName      string                  `json:"creator_name,omitempty"`
	EscalationReason string                  `json:"escalation_reason,omitempty"`
	Retries          int                     `json:"retries,omitempty"`
}

// NewMessage validates n and flattens it.
func NewMessage(n domain.Notification) (Message, error) {
	if err := n.Validate(); err != nil {
		return Message{}, err
	}
	return Message{
		Type:             n.Type,
		To:               n.Recipient.Email,
		RecipientName:    n.Recipient.Name,
		TicketID:         n.Ticket.ID,
		TicketTitle:      n.Ticket.Title,
		TicketStatus:     n.Ticket.Status,
		TicketPriority:   n.Ticket.Priority,
		SLADueDate:       n.Ticket.SLADueDate,
		AIResponse:       n.Ticket.AIResponse,
		AssigneeName:     nameOf(n.Assignee),
		AssignerName:     nameOf(n.Assigner),
		EscalatorName:    nameOf(n.Escalator),
		CreatorName:      nameOf(n.Creator),
		EscalationReason: n.EscalationReason,
	}, nil
}

func nameOf(u *domain.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Direct sends synchronously through a Sender.
type Direct struct {
	sender Sender
}

// NewDirect wraps sender as a Notifier.
func NewDirect(sender Sender) *Direct {
	return &Direct{sender: sender}
}

func (d *Direct) Notify(ctx context.Context, n domain.Notification) error {
	msg, err := NewMessage(n)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, msg)
}
