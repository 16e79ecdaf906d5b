package repository

import (
	"context"
	"strconv"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

// Create inserts an entry. Recording the same event twice keeps the first row.
func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, event_id, event_type, actor_id, system, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (event_id) DO NOTHING`
	payload := history.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	_, err := r.db.Exec(ctx, query,
		history.TicketID,
		history.EventID,
		history.EventType,
		history.ActorID,
		history.System,
		payload,
		history.CreatedAt,
	)
	return err
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, event_id, event_type, actor_id, system, payload, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			history domain.TicketHistory
			id      int64
		)
		if err := rows.Scan(
			&id,
			&history.TicketID,
			&history.EventID,
			&history.EventType,
			&history.ActorID,
			&history.System,
			&history.Payload,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		history.ID = strconv.FormatInt(id, 10)
		result = append(result, history)
	}
	return result, rows.Err()
}
