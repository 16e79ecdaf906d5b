package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/notify"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
	"github.com/spec-kit/helpdesk-routing/internal/sla"
)

const sweepPageSize = 200

// SweepResult reports one sweep's outcome.
type SweepResult struct {
	TicketsNearBreach   int `json:"ticketsNearBreach"`
	TicketsBreached     int `json:"ticketsBreached"`
	NotificationsSent   int `json:"notificationsSent"`
	NotificationsFailed int `json:"notificationsFailed"`
}

// SLASweeper warns about tickets nearing their deadline and latches breaches.
type SLASweeper struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	notifier   notify.Notifier
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	threshold  time.Duration
	now        func() time.Time
}

// SweepDependencies bundles collaborators.
type SweepDependencies struct {
	TicketRepo       repository.TicketRepository
	UserRepo         repository.UserRepository
	Notifier         notify.Notifier
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	WarningThreshold time.Duration
	Now              func() time.Time
}

// NewSLASweeper creates the sweeper. A zero threshold uses sla.DefaultWarningThreshold.
func NewSLASweeper(deps SweepDependencies) *SLASweeper {
	s := &SLASweeper{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		threshold:  deps.WarningThreshold,
		now:        deps.Now,
	}
	if s.threshold <= 0 {
		s.threshold = sla.DefaultWarningThreshold
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// OnDailySweep runs the near-breach pass and then the breach pass. Query
// failures abort the sweep; per-ticket failures are logged and counted.
func (s *SLASweeper) OnDailySweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	result := &SweepResult{}

	if err := s.nearBreachPass(ctx, now, result); err != nil {
		return nil, err
	}
	if err := s.breachPass(ctx, now, result); err != nil {
		return nil, err
	}

	s.metrics.RecordSweep(result.TicketsNearBreach, result.TicketsBreached)
	s.logger.Info("sla sweep complete",
		zap.Int("near_breach", result.TicketsNearBreach),
		zap.Int("breached", result.TicketsBreached),
		zap.Int("notifications_sent", result.NotificationsSent),
		zap.Int("notifications_failed", result.NotificationsFailed))
	return result, nil
}

func (s *SLASweeper) nearBreachPass(ctx context.Context, now time.Time, result *SweepResult) error {
	notBreached := false
	horizon := now.Add(s.threshold)
	tickets, err := s.listAll(ctx, repository.TicketFilter{
		Statuses:         domain.WorkableStatuses(),
		SLABreached:      &notBreached,
		SLADueAtOrBefore: &horizon,
		Sort:             repository.SortSLADueAsc,
	})
	if err != nil {
		return fmt.Errorf("near-breach query: %w", err)
	}
	if len(tickets) == 0 {
		return nil
	}

	admins, err := activeAdmins(ctx, s.users)
	if err != nil {
		return fmt.Errorf("admin query: %w", err)
	}

	for i := range tickets {
		ticket := &tickets[i]
		if !sla.IsNearBreach(now, ticket.SLADueDate, s.threshold, ticket.SLABreached) {
			continue
		}
		result.TicketsNearBreach++

		var assignee *domain.User
		if ticket.IsAssigned() {
			user, err := s.users.GetByID(ctx, *ticket.AssignedTo)
			if err != nil {
				s.logger.Warn("sla warning assignee lookup failed",
					zap.String("ticket_id", ticket.ID), zap.String("assignee_id", *ticket.AssignedTo), zap.Error(err))
			} else {
				assignee = user
			}
		}

		sent := 0
		for _, recipient := range warningRecipients(assignee, admins) {
			if err := s.send(ctx, domain.NewSLAWarningNotification(ticket, &recipient, assignee)); err != nil {
				result.NotificationsFailed++
				s.logger.Warn("sla warning notification failed",
					zap.String("ticket_id", ticket.ID), zap.String("recipient_id", recipient.ID), zap.Error(err))
				continue
			}
			result.NotificationsSent++
			sent++
		}

		s.publish(ctx, events.NewEvent(events.EventSLANearBreach, ticket.ID, events.SystemActor(), now, events.SLAPayload{
			SLADueDate: ticket.SLADueDate,
			AssignedTo: ticket.AssignedTo,
			Notified:   sent,
		}))
	}
	return nil
}

func (s *SLASweeper) breachPass(ctx context.Context, now time.Time, result *SweepResult) error {
	notBreached := false
	tickets, err := s.listAll(ctx, repository.TicketFilter{
		Statuses:     domain.WorkableStatuses(),
		SLABreached:  &notBreached,
		SLADueBefore: &now,
		Sort:         repository.SortSLADueAsc,
	})
	if err != nil {
		return fmt.Errorf("breach query: %w", err)
	}

	for i := range tickets {
		ticket := &tickets[i]
		if !sla.IsBreached(now, ticket.SLADueDate, ticket.SLABreached) {
			continue
		}
		flipped, err := s.tickets.MarkSLABreached(ctx, ticket.ID)
		if err != nil {
			s.logger.Warn("mark sla breached failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if !flipped {
			continue
		}
		result.TicketsBreached++
		s.publish(ctx, events.NewEvent(events.EventSLABreached, ticket.ID, events.SystemActor(), now, events.SLAPayload{
			SLADueDate: ticket.SLADueDate,
			AssignedTo: ticket.AssignedTo,
		}))
	}
	return nil
}

// listAll reads every page before the caller mutates anything, so flipping
// sla_breached cannot shift later pages.
func (s *SLASweeper) listAll(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	filter.Limit = sweepPageSize
	var all []domain.Ticket
	for offset := 0; ; offset += sweepPageSize {
		filter.Offset = offset
		page, err := s.tickets.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < sweepPageSize {
			return all, nil
		}
	}
}

func (s *SLASweeper) send(ctx context.Context, n domain.Notification) error {
	if s.notifier == nil {
		return fmt.Errorf("notifier not configured")
	}
	err := s.notifier.Notify(ctx, n)
	s.metrics.RecordNotification(string(n.Type), err == nil)
	return err
}

func (s *SLASweeper) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// warningRecipients returns the assignee followed by every admin, each user at most once.
func warningRecipients(assignee *domain.User, admins []domain.User) []domain.User {
	seen := make(map[string]struct{}, len(admins)+1)
	out := make([]domain.User, 0, len(admins)+1)
	if assignee != nil {
		seen[assignee.ID] = struct{}{}
		out = append(out, *assignee)
	}
	for _, admin := range admins {
		if _, dup := seen[admin.ID]; dup {
			continue
		}
		seen[admin.ID] = struct{}{}
		out = append(out, admin)
	}
	return out
}
