package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
)

// HistoryRecorder writes every ticket event to the audit trail.
type HistoryRecorder struct {
	repo   repository.TicketHistoryRepository
	logger *zap.Logger
}

// NewHistoryRecorder builds a recorder.
func NewHistoryRecorder(repo repository.TicketHistoryRepository, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{repo: repo, logger: logger}
}

// Subscribe registers the recorder for all event types.
func (h *HistoryRecorder) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range events.AllEventTypes() {
		dispatcher.Subscribe(eventType, h.Record)
	}
}

// Record stores one event.
func (h *HistoryRecorder) Record(ctx context.Context, event events.Event) error {
	payload, err := payloadMap(event.Payload)
	if err != nil {
		return err
	}
	return h.repo.Create(ctx, &domain.TicketHistory{
		TicketID:  event.TicketID,
		EventID:   event.ID,
		EventType: string(event.Type),
		ActorID:   event.Actor.UserID,
		System:    event.Actor.System,
		Payload:   payload,
		CreatedAt: event.Timestamp,
	})
}

func payloadMap(payload any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
