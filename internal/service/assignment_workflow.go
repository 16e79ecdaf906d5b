package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/ai"
	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/notify"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// NoAssigneeReason is reported when neither a moderator nor an admin is available.
const NoAssigneeReason = "No available moderators or admins found"

// Assignment sources.
const (
	SourceModerator = "moderator"
	SourceAdmin     = "admin"
	SourceNone      = "none"
)

// TicketCreatedInput identifies the new ticket. Empty text fields are read from the store.
type TicketCreatedInput struct {
	TicketID    string                `json:"ticketId"`
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	Type        string                `json:"type,omitempty"`
	CreatedBy   string                `json:"createdBy,omitempty"`
}

// AnalysisResult is the output of the analyze stage.
type AnalysisResult struct {
	Analysis domain.Analysis `json:"analysis"`
	Fallback bool            `json:"fallback"`
	Error    string          `json:"error,omitempty"`
}

// PersistResult is the output of the persist stage.
type PersistResult struct {
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

// AssignmentResult is the output of the select-and-assign stage.
type AssignmentResult struct {
	Success    bool   `json:"success"`
	AssigneeID string `json:"assigneeId,omitempty"`
	Source     string `json:"source"`
	Reason     string `json:"reason,omitempty"`
}

// NotificationResult is the output of the notify stage.
type NotificationResult struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// WorkflowResult aggregates every stage. It is returned whenever the ticket exists.
type WorkflowResult struct {
	TicketID           string             `json:"ticketId"`
	AIAnalysis         AnalysisResult     `json:"aiAnalysis"`
	AnalysisPersisted  PersistResult      `json:"analysisPersisted"`
	AssignmentResult   AssignmentResult   `json:"assignmentResult"`
	Notification       NotificationResult `json:"notification"`
	ProcessingComplete bool               `json:"processingComplete"`
}

// AssignmentWorkflow analyzes, assigns and notifies for one newly created ticket.
type AssignmentWorkflow struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	analyzer   ai.Analyzer
	notifier   notify.Notifier
	matcher    *SkillMatcher
	ranker     *WorkloadRanker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowDependencies bundles collaborators.
type WorkflowDependencies struct {
	TicketRepo          repository.TicketRepository
	UserRepo            repository.UserRepository
	Analyzer            ai.Analyzer
	Notifier            notify.Notifier
	Dispatcher          events.Dispatcher
	Metrics             *observability.Metrics
	Logger              *zap.Logger
	WorkloadConcurrency int
	Now                 func() time.Time
}

// NewAssignmentWorkflow creates the workflow.
func NewAssignmentWorkflow(deps WorkflowDependencies) *AssignmentWorkflow {
	w := &AssignmentWorkflow{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		analyzer:   deps.Analyzer,
		notifier:   deps.Notifier,
		matcher:    NewSkillMatcher(deps.UserRepo),
		ranker:     NewWorkloadRanker(deps.TicketRepo, deps.WorkloadConcurrency),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if w.analyzer == nil {
		w.analyzer = ai.Disabled{}
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// OnTicketCreated runs the pipeline analyze, persist, assign, notify. Only a
// missing ticket at entry is returned as an error; every later failure is
// recorded in the result.
func (w *AssignmentWorkflow) OnTicketCreated(ctx context.Context, in TicketCreatedInput) (*WorkflowResult, error) {
	ticket, err := w.tickets.GetByID(ctx, in.TicketID)
	if err != nil {
		w.metrics.RecordWorkflow("not_found")
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": in.TicketID})
		}
		return nil, apperrors.NewUnavailable("ticket store", err)
	}
	in = mergeInput(in, ticket)
	log := w.logger.With(zap.String("ticket_id", ticket.ID))

	result := &WorkflowResult{TicketID: ticket.ID}
	result.AIAnalysis = w.analyze(ctx, in, log)
	result.AnalysisPersisted = w.persistAnalysis(ctx, ticket, result.AIAnalysis, log)
	result.AssignmentResult = w.assign(ctx, ticket.ID, result.AIAnalysis.Analysis.RequiredSkills, events.SystemActor(), log)
	if result.AssignmentResult.Success {
		result.Notification = w.notifyAssignee(ctx, ticket.ID, result.AssignmentResult.AssigneeID, log)
	}
	result.ProcessingComplete = true

	outcome := "assigned"
	if !result.AssignmentResult.Success {
		outcome = "unassigned"
	}
	w.metrics.RecordWorkflow(outcome)
	log.Info("ticket workflow complete",
		zap.Bool("ai_fallback", result.AIAnalysis.Fallback),
		zap.Bool("analysis_persisted", result.AnalysisPersisted.Persisted),
		zap.Bool("assigned", result.AssignmentResult.Success),
		zap.String("assignee_id", result.AssignmentResult.AssigneeID),
		zap.Bool("notified", result.Notification.Success))
	return result, nil
}

func mergeInput(in TicketCreatedInput, ticket *domain.Ticket) TicketCreatedInput {
	in.TicketID = ticket.ID
	if in.Title == "" {
		in.Title = ticket.Title
	}
	if in.Description == "" {
		in.Description = ticket.Description
	}
	if in.Priority == "" {
		in.Priority = ticket.Priority
	}
	if in.Type == "" {
		in.Type = ticket.Type
	}
	if in.CreatedBy == "" {
		in.CreatedBy = ticket.CreatedBy
	}
	return in
}

func (w *AssignmentWorkflow) analyze(ctx context.Context, in TicketCreatedInput, log *zap.Logger) AnalysisResult {
	analysis, err := w.analyzer.Analyze(ctx, ai.Request{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Type:        in.Type,
	})
	if err == nil && analysis == nil {
		err = errors.New("analyzer returned no result")
	}
	if err != nil {
		w.metrics.RecordAIFallback()
		if !errors.Is(err, ai.ErrDisabled) {
			log.Warn("ai analysis failed, using default analysis", zap.Error(err))
		}
		return AnalysisResult{Analysis: domain.DefaultAnalysis(in.Type), Fallback: true, Error: err.Error()}
	}
	return AnalysisResult{Analysis: *analysis}
}

func (w *AssignmentWorkflow) persistAnalysis(ctx context.Context, ticket *domain.Ticket, stage AnalysisResult, log *zap.Logger) PersistResult {
	update := repository.AnalysisUpdate{
		RequiredSkills:          stage.Analysis.RequiredSkills,
		AINotes:                 stage.Analysis.AINotes,
		AIResponse:              stage.Analysis.SuggestedResponse,
		AIProcessed:             !stage.Fallback,
		EstimatedResolutionTime: stage.Analysis.EstimatedResolutionTime,
	}
	if stage.Fallback {
		reason := stage.Error
		update.AIProcessingError = &reason
	}
	if p := stage.Analysis.Priority; p != nil && p.Valid() && *p != ticket.Priority {
		update.Priority = p
	}

	if err := w.tickets.ApplyAnalysis(ctx, ticket.ID, update); err != nil {
		log.Warn("persist analysis failed", zap.Error(err))
		if markErr := w.tickets.MarkAnalysisFailed(ctx, ticket.ID, err.Error()); markErr != nil {
			log.Warn("mark analysis failed", zap.Error(markErr))
		}
		return PersistResult{Error: err.Error()}
	}

	priority := ticket.Priority
	if update.Priority != nil {
		priority = *update.Priority
	}
	w.publish(ctx, events.NewEvent(events.EventTicketAnalyzed, ticket.ID, events.SystemActor(), w.now(), events.TicketAnalyzedPayload{
		RequiredSkills:          domain.NormalizeSkills(update.RequiredSkills),
		Priority:                priority,
		EstimatedResolutionTime: update.EstimatedResolutionTime,
		Fallback:                stage.Fallback,
		Persisted:               true,
	}))
	return PersistResult{Persisted: true}
}

// assign picks a skill-matched moderator by workload, falling back to the most
// recently logged-in active admin.
func (w *AssignmentWorkflow) assign(ctx context.Context, ticketID string, requiredSkills []string, actor events.Actor, log *zap.Logger) AssignmentResult {
	assignee, source := w.pickModerator(ctx, requiredSkills, log), SourceModerator
	if assignee == nil {
		admin, err := w.latestAdmin(ctx)
		if err != nil {
			log.Warn("admin lookup failed", zap.Error(err))
			w.metrics.RecordAssignment(SourceNone)
			return AssignmentResult{Source: SourceNone, Reason: err.Error()}
		}
		assignee, source = admin, SourceAdmin
	}
	if assignee == nil {
		w.metrics.RecordAssignment(SourceNone)
		log.Warn("no assignee available")
		return AssignmentResult{Source: SourceNone, Reason: NoAssigneeReason}
	}

	if err := w.tickets.Assign(ctx, ticketID, assignee.ID); err != nil {
		log.Warn("assign ticket failed", zap.String("assignee_id", assignee.ID), zap.Error(err))
		w.metrics.RecordAssignment(SourceNone)
		return AssignmentResult{Source: SourceNone, Reason: err.Error()}
	}
	w.metrics.RecordAssignment(source)

	eventSource := events.AssignmentSkillMatch
	if source == SourceAdmin {
		eventSource = events.AssignmentAdminFallback
	}
	w.publish(ctx, events.NewEvent(events.EventTicketAssigned, ticketID, actor, w.now(), events.TicketAssignedPayload{
		AssigneeID: assignee.ID,
		Source:     eventSource,
	}))
	return AssignmentResult{Success: true, AssigneeID: assignee.ID, Source: source}
}

func (w *AssignmentWorkflow) pickModerator(ctx context.Context, requiredSkills []string, log *zap.Logger) *domain.User {
	if len(domain.NormalizeSkills(requiredSkills)) == 0 {
		return nil
	}
	candidates, err := w.matcher.FindCandidates(ctx, requiredSkills, OrderLastLogin)
	if err != nil {
		log.Warn("skill match failed", zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}
	chosen, err := w.ranker.LeastLoaded(ctx, candidates)
	if err != nil {
		log.Warn("workload ranking failed", zap.Error(err))
		return nil
	}
	return chosen
}

func (w *AssignmentWorkflow) latestAdmin(ctx context.Context) (*domain.User, error) {
	admins, err := activeAdmins(ctx, w.users)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, nil
	}
	SortUsers(admins, OrderLastLogin)
	return &admins[0], nil
}

func (w *AssignmentWorkflow) notifyAssignee(ctx context.Context, ticketID, assigneeID string, log *zap.Logger) NotificationResult {
	res := NotificationResult{Attempted: true}
	if w.notifier == nil {
		res.Error = "notifier not configured"
		return res
	}

	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		res.Error = err.Error()
		w.metrics.RecordNotification(string(domain.NotificationAssignment), false)
		return res
	}
	assignee, err := w.users.GetByID(ctx, assigneeID)
	if err != nil {
		res.Error = err.Error()
		w.metrics.RecordNotification(string(domain.NotificationAssignment), false)
		return res
	}
	creator, err := w.users.GetByID(ctx, ticket.CreatedBy)
	if err != nil {
		log.Debug("ticket creator not found", zap.String("created_by", ticket.CreatedBy), zap.Error(err))
		creator = nil
	}

	if err := w.notifier.Notify(ctx, domain.NewAssignmentNotification(ticket, assignee, nil, creator)); err != nil {
		log.Warn("assignment notification failed", zap.Error(err))
		res.Error = err.Error()
		w.metrics.RecordNotification(string(domain.NotificationAssignment), false)
		return res
	}
	w.metrics.RecordNotification(string(domain.NotificationAssignment), true)
	res.Success = true
	return res
}

func (w *AssignmentWorkflow) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, event)
}

func activeAdmins(ctx context.Context, users repository.UserRepository) ([]domain.User, error) {
	active := true
	list, err := listAllUsers(ctx, users, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleAdmin},
		Active: &active,
	})
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, u := range list {
		if u.IsActive && u.Role == domain.RoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}
