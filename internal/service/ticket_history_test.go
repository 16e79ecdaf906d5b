package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
	listErr error
}

func (r *fakeHistoryRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.EventID == h.EventID {
			return nil
		}
	}
	r.entries = append(r.entries, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestHistoryRecorder_RecordsStatusChanges(t *testing.T) {
	ticket := openTicket("t1")
	tickets := newFakeTicketRepo(ticket)
	users := newFakeUserRepo(reporter("reporter"))
	history := &fakeHistoryRepo{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	NewHistoryRecorder(history, nil).Subscribe(dispatcher)

	svc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		UserRepo:    users,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
		Now:         fixedNow,
	})

	_, err := svc.TransitionStatus(context.Background(), "t1", domain.TicketStatusEscalated, "m1")
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(events.EventTicketStatusChanged), entries[0].EventType)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, "m1", *entries[0].ActorID)
	assert.False(t, entries[0].System)
	assert.Equal(t, baseTime, entries[0].CreatedAt)
	assert.NotEmpty(t, entries[0].Payload)
}

func TestHistoryRecorder_DuplicateEventKeptOnce(t *testing.T) {
	history := &fakeHistoryRepo{}
	rec := NewHistoryRecorder(history, nil)
	event := events.NewEvent(events.EventSLABreached, "t1", events.SystemActor(), baseTime, events.SLAPayload{SLADueDate: baseTime})

	require.NoError(t, rec.Record(context.Background(), event))
	require.NoError(t, rec.Record(context.Background(), event))
	assert.Len(t, history.entries, 1)
	assert.True(t, history.entries[0].System)
}

func TestTicketService_History(t *testing.T) {
	history := &fakeHistoryRepo{}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  newFakeTicketRepo(openTicket("t1")),
		UserRepo:    newFakeUserRepo(),
		HistoryRepo: history,
		Now:         fixedNow,
	})

	_, err := svc.History(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	entries, err := svc.History(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	history.listErr = errors.New("db down")
	_, err = svc.History(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnavailable, apperrors.ToDomainError(err).Code)
}
