package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/notify"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// NotificationWorkflows sends notifications for actions taken by people.
// A missing ticket or principal fails only the notification at hand.
type NotificationWorkflows struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	notifier   notify.Notifier
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Notifier   notify.Notifier
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewNotificationWorkflows creates the service.
func NewNotificationWorkflows(deps NotificationDependencies) *NotificationWorkflows {
	n := &NotificationWorkflows{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// OnTicketAssignedManually notifies the assignee of a human assignment.
func (n *NotificationWorkflows) OnTicketAssignedManually(ctx context.Context, ticketID, assignedTo, assignedBy string) error {
	ticket, err := n.ticket(ctx, ticketID)
	if err != nil {
		return err
	}
	assignee, err := n.user(ctx, assignedTo, "assignee")
	if err != nil {
		return err
	}
	assigner, err := n.user(ctx, assignedBy, "assigner")
	if err != nil {
		return err
	}
	creator, _ := n.users.GetByID(ctx, ticket.CreatedBy)

	if err := n.send(ctx, domain.NewAssignmentNotification(ticket, assignee, assigner, creator)); err != nil {
		return err
	}
	if n.dispatcher != nil {
		_ = n.dispatcher.Publish(ctx, events.NewEvent(events.EventTicketAssigned, ticket.ID, events.UserActor(assigner.ID), n.now(),
			events.TicketAssignedPayload{AssigneeID: assignee.ID, Source: events.AssignmentManual}))
	}
	return nil
}

// OnTicketEscalated notifies the user a ticket was escalated to.
func (n *NotificationWorkflows) OnTicketEscalated(ctx context.Context, ticketID, escalatedBy, escalatedTo, reason string) error {
	ticket, err := n.ticket(ctx, ticketID)
	if err != nil {
		return err
	}
	escalator, err := n.user(ctx, escalatedBy, "escalator")
	if err != nil {
		return err
	}
	target, err := n.user(ctx, escalatedTo, "escalation target")
	if err != nil {
		return err
	}
	return n.send(ctx, domain.NewEscalationNotification(ticket, target, escalator, reason))
}

// OnTicketResolved tells the creator their ticket was resolved.
func (n *NotificationWorkflows) OnTicketResolved(ctx context.Context, ticketID string) error {
	ticket, err := n.ticket(ctx, ticketID)
	if err != nil {
		return err
	}
	creator, err := n.user(ctx, ticket.CreatedBy, "creator")
	if err != nil {
		return err
	}
	var assignee *domain.User
	if ticket.IsAssigned() {
		assignee, _ = n.users.GetByID(ctx, *ticket.AssignedTo)
	}
	return n.send(ctx, domain.NewResolutionNotification(ticket, creator, assignee))
}

func (n *NotificationWorkflows) ticket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := n.tickets.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.NewUnavailable("ticket store", err)
	}
	return ticket, nil
}

func (n *NotificationWorkflows) user(ctx context.Context, id, role string) (*domain.User, error) {
	if id == "" {
		return nil, apperrors.NewValidationError(role+" required", map[string]any{"field": role})
	}
	user, err := n.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id, "role": role})
		}
		return nil, apperrors.NewUnavailable("user store", err)
	}
	return user, nil
}

func (n *NotificationWorkflows) send(ctx context.Context, msg domain.Notification) error {
	if n.notifier == nil {
		return apperrors.NewUnavailable("notifier", nil)
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	err := n.notifier.Notify(ctx, msg)
	n.metrics.RecordNotification(string(msg.Type), err == nil)
	if err != nil {
		n.logger.Warn("notification failed",
			zap.String("type", string(msg.Type)),
			zap.String("ticket_id", msg.Ticket.ID),
			zap.Error(err))
		return apperrors.NewUnavailable("notifier", err)
	}
	return nil
}
