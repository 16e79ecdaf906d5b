package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// TicketSort selects the ordering of ticket listings.
type TicketSort int

const (
	SortUpdatedDesc TicketSort = iota
	SortSLADueAsc
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	Statuses         []domain.TicketStatus
	Priorities       []domain.TicketPriority
	AssignedTo       *string
	Skill            *string
	SLABreached      *bool
	SLADueBefore     *time.Time
	SLADueAtOrBefore *time.Time
	Sort             TicketSort
	Limit            int
	Offset           int
}

// AnalysisUpdate is written onto a ticket in a single statement.
// Priority is applied only when non-nil; the SLA due date is never touched.
type AnalysisUpdate struct {
	RequiredSkills          []string
	AINotes                 string
	AIResponse              string
	AIProcessed             bool
	AIProcessingError       *string
	EstimatedResolutionTime float64
	Priority                *domain.TicketPriority
}

// TicketRepository encapsulates ticket persistence. Every mutation is a
// single-row atomic UPDATE; missing rows surface as pgx.ErrNoRows.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int64, error)
	CountOpenAssigned(ctx context.Context, assigneeID string) (int64, error)
	ApplyAnalysis(ctx context.Context, id string, update AnalysisUpdate) error
	MarkAnalysisFailed(ctx context.Context, id string, reason string) error
	Assign(ctx context.Context, id, assigneeID string) error
	MarkSLABreached(ctx context.Context, id string) (bool, error)
	TransitionStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) (*domain.Ticket, error)
}

const ticketColumns = `id, title, description, status, priority, type, required_skills, assigned_to, created_by,
               ai_notes, ai_response, ai_processed, ai_processing_error, sla_due_date, sla_breached,
               estimated_resolution_time, actual_resolution_time, created_at, updated_at,
               resolved_at, closed_at, escalated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.RequiredSkills = domain.NormalizeSkills(ticket.RequiredSkills)
	if err := ticket.Validate(); err != nil {
		return err
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO tickets (id, title, description, status, priority, type, required_skills, assigned_to,
            created_by, sla_due_date, estimated_resolution_time, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Type,
		ticket.RequiredSkills,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.SLADueDate,
		ticket.EstimatedResolutionTime,
		ticket.CreatedAt,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)

	order := "updated_at DESC, id ASC"
	if filter.Sort == SortSLADueAsc {
		order = "sla_due_date ASC, id ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, where, order, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int64, error) {
	where, args := buildTicketWhere(filter)
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountOpenAssigned(ctx context.Context, assigneeID string) (int64, error) {
	return r.Count(ctx, TicketFilter{
		AssignedTo: &assigneeID,
		Statuses:   domain.WorkableStatuses(),
	})
}

func (r *ticketRepository) ApplyAnalysis(ctx context.Context, id string, update AnalysisUpdate) error {
	const query = `
        UPDATE tickets SET required_skills=$1, ai_notes=$2, ai_response=$3, ai_processed=$4,
            ai_processing_error=$5, estimated_resolution_time=$6, priority=COALESCE($7, priority), updated_at=NOW()
        WHERE id=$8`
	var priority *string
	if update.Priority != nil {
		p := string(*update.Priority)
		priority = &p
	}
	return expectOneRow(r.db.Exec(ctx, query,
		domain.NormalizeSkills(update.RequiredSkills),
		update.AINotes,
		update.AIResponse,
		update.AIProcessed,
		update.AIProcessingError,
		update.EstimatedResolutionTime,
		priority,
		id,
	))
}

func (r *ticketRepository) MarkAnalysisFailed(ctx context.Context, id string, reason string) error {
	const query = `UPDATE tickets SET ai_processed=FALSE, ai_processing_error=$1, updated_at=NOW() WHERE id=$2`
	return expectOneRow(r.db.Exec(ctx, query, reason, id))
}

// Assign sets the assignee and moves an open ticket to in-progress in one statement.
func (r *ticketRepository) Assign(ctx context.Context, id, assigneeID string) error {
	const query = `
        UPDATE tickets SET assigned_to=$1,
            status=CASE WHEN status='open' THEN 'in-progress' ELSE status END,
            updated_at=NOW()
        WHERE id=$2`
	return expectOneRow(r.db.Exec(ctx, query, assigneeID, id))
}

// MarkSLABreached latches sla_breached. It reports whether this call flipped
// the flag; re-marking an already breached ticket is a no-op, not an error.
func (r *ticketRepository) MarkSLABreached(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE tickets SET sla_breached=TRUE, updated_at=NOW() WHERE id=$1 AND sla_breached=FALSE`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// TransitionStatus changes the status; each status timestamp is written only
// the first time the ticket enters that status.
func (r *ticketRepository) TransitionStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status=$1::text,
            resolved_at=CASE WHEN $1::text='resolved' THEN COALESCE(resolved_at, $2) ELSE resolved_at END,
            closed_at=CASE WHEN $1::text='closed' THEN COALESCE(closed_at, $2) ELSE closed_at END,
            escalated_at=CASE WHEN $1::text='escalated' THEN COALESCE(escalated_at, $2) ELSE escalated_at END,
            actual_resolution_time=CASE WHEN $1::text='resolved' AND actual_resolution_time IS NULL
                THEN EXTRACT(EPOCH FROM ($2 - created_at)) / 3600.0 ELSE actual_resolution_time END,
            updated_at=NOW()
        WHERE id=$3
        RETURNING ` + ticketColumns
	return scanTicket(r.db.QueryRow(ctx, query, string(status), at, id))
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, string(pr))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Skill != nil && strings.TrimSpace(*filter.Skill) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.Skill)))
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(required_skills)", len(args)))
	}
	if filter.SLABreached != nil {
		args = append(args, *filter.SLABreached)
		clauses = append(clauses, fmt.Sprintf("sla_breached=$%d", len(args)))
	}
	if filter.SLADueBefore != nil {
		args = append(args, *filter.SLADueBefore)
		clauses = append(clauses, fmt.Sprintf("sla_due_date < $%d", len(args)))
	}
	if filter.SLADueAtOrBefore != nil {
		args = append(args, *filter.SLADueAtOrBefore)
		clauses = append(clauses, fmt.Sprintf("sla_due_date <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Type,
		&ticket.RequiredSkills,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.AINotes,
		&ticket.AIResponse,
		&ticket.AIProcessed,
		&ticket.AIProcessingError,
		&ticket.SLADueDate,
		&ticket.SLABreached,
		&ticket.EstimatedResolutionTime,
		&ticket.ActualResolutionTime,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.EscalatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
