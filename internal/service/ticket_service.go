package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
	"github.com/spec-kit/helpdesk-routing/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// TicketService covers ticket intake and status changes.
type TicketService struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	history       repository.TicketHistoryRepository
	notifications *NotificationWorkflows
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	UserRepo      repository.UserRepository
	HistoryRepo   repository.TicketHistoryRepository
	Notifications *NotificationWorkflows
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Now           func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Type        string
	CreatedBy   string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:       deps.TicketRepo,
		users:         deps.UserRepo,
		history:       deps.HistoryRepo,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicket stores a new open ticket. The SLA due date is fixed here from
// the initial priority and never recomputed.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if _, err := s.users.GetByID(ctx, input.CreatedBy); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("unknown creator", map[string]any{"created_by": input.CreatedBy})
		}
		return nil, apperrors.MapError(err)
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Type:        strings.TrimSpace(input.Type),
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Type == "" {
		ticket.Type = "general"
	}
	ticket.SLADueDate = sla.DueDate(now, ticket.Priority)
	ticket.EstimatedResolutionTime = domain.DefaultEstimatedResolutionHours

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetTicket loads a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// History returns the ticket's audit trail, oldest first.
func (s *TicketService) History(ctx context.Context, id string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.NewUnavailable("ticket history", err)
	}
	return entries, nil
}

// TransitionStatus moves a ticket to status. Entering resolved notifies the
// creator; a failed notification is logged and does not undo the change.
func (s *TicketService) TransitionStatus(ctx context.Context, id string, status domain.TicketStatus, actorID string) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}
	current, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.tickets.TransitionStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if s.dispatcher != nil {
		actor := events.SystemActor()
		if actorID != "" {
			actor = events.UserActor(actorID)
		}
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventTicketStatusChanged, id, actor, s.now(),
			events.TicketStatusChangedPayload{OldStatus: current.Status, NewStatus: status}))
	}

	if status == domain.TicketStatusResolved && s.notifications != nil {
		if err := s.notifications.OnTicketResolved(ctx, id); err != nil {
			s.logger.Warn("resolution notification failed", zap.String("ticket_id", id), zap.Error(err))
		}
	}
	return updated, nil
}
