package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/events"
)

func dueIn(id string, d time.Duration) domain.Ticket {
	t := openTicket(id)
	t.SLADueDate = baseTime.Add(d)
	return t
}

func newSweeper(tickets *fakeTicketRepo, users *fakeUserRepo, notifier *fakeNotifier, dispatcher events.Dispatcher) *SLASweeper {
	return NewSLASweeper(SweepDependencies{
		TicketRepo: tickets,
		UserRepo:   users,
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Now:        fixedNow,
	})
}

func TestOnDailySweep_DeduplicatesAssigneeWhoIsAdmin(t *testing.T) {
	near := dueIn("t1", time.Hour)
	near.AssignedTo = ptrString("boss")
	tickets := newFakeTicketRepo(near)
	users := newFakeUserRepo(admin("boss", nil), admin("other", nil))
	notifier := &fakeNotifier{}

	res, err := newSweeper(tickets, users, notifier, nil).OnDailySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TicketsNearBreach)
	assert.Equal(t, 0, res.TicketsBreached)
	assert.Equal(t, []string{"boss", "other"}, notifier.recipients())
	for _, n := range notifier.sent {
		assert.Equal(t, domain.NotificationSLAWarning, n.Type)
		require.NotNil(t, n.Assignee)
		assert.Equal(t, "boss", n.Assignee.ID)
	}
}

func TestOnDailySweep_NearBreachNotifiesModeratorAndAdmins(t *testing.T) {
	near := dueIn("t1", 90*time.Minute)
	near.AssignedTo = ptrString("mod")
	unassigned := dueIn("t2", 30*time.Minute)
	later := dueIn("t3", 5*time.Hour)
	tickets := newFakeTicketRepo(near, unassigned, later)
	users := newFakeUserRepo(moderator("mod", "vpn"), admin("a1", nil))
	notifier := &fakeNotifier{}

	res, err := newSweeper(tickets, users, notifier, nil).OnDailySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.TicketsNearBreach)
	assert.Equal(t, 3, res.NotificationsSent)
	assert.ElementsMatch(t, []string{"a1", "a1", "mod"}, notifier.recipients())
}

func TestOnDailySweep_NearBreachExcludesAlreadyBreached(t *testing.T) {
	breached := dueIn("t1", -3*time.Hour)
	breached.SLABreached = true
	resolved := dueIn("t2", time.Hour)
	resolved.Status = domain.TicketStatusResolved
	tickets := newFakeTicketRepo(breached, resolved)
	notifier := &fakeNotifier{}

	res, err := newSweeper(tickets, newFakeUserRepo(admin("a1", nil)), notifier, nil).OnDailySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.TicketsNearBreach)
	assert.Equal(t, 0, res.TicketsBreached)
	assert.Empty(t, notifier.sent)
	assert.True(t, tickets.get("t1").SLABreached)
}

func TestOnDailySweep_BreachLatchIsOneWay(t *testing.T) {
	overdue := dueIn("t1", -time.Hour)
	inProgress := dueIn("t2", -10*time.Minute)
	inProgress.Status = domain.TicketStatusInProgress
	tickets := newFakeTicketRepo(overdue, inProgress, dueIn("t3", 48*time.Hour))

	var breachedEvents []string
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(events.EventSLABreached, func(_ context.Context, e events.Event) error {
		breachedEvents = append(breachedEvents, e.TicketID)
		return nil
	})
	sweeper := newSweeper(tickets, newFakeUserRepo(admin("a1", nil)), &fakeNotifier{}, dispatcher)

	first, err := sweeper.OnDailySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.TicketsBreached)
	assert.True(t, tickets.get("t1").SLABreached)
	assert.True(t, tickets.get("t2").SLABreached)
	assert.False(t, tickets.get("t3").SLABreached)
	assert.ElementsMatch(t, []string{"t1", "t2"}, breachedEvents)

	second, err := sweeper.OnDailySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.TicketsBreached)
	assert.Equal(t, 0, second.TicketsNearBreach)
	assert.True(t, tickets.get("t1").SLABreached)
}

func TestOnDailySweep_NotificationFailureIsCounted(t *testing.T) {
	tickets := newFakeTicketRepo(dueIn("t1", time.Hour))
	users := newFakeUserRepo(admin("a1", nil), admin("a2", nil))
	notifier := &fakeNotifier{failFor: map[string]error{"a1": errors.New("mailbox full")}}

	res, err := newSweeper(tickets, users, notifier, nil).OnDailySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TicketsNearBreach)
	assert.Equal(t, 1, res.NotificationsSent)
	assert.Equal(t, 1, res.NotificationsFailed)
}

func TestOnDailySweep_QueryErrorAborts(t *testing.T) {
	tickets := newFakeTicketRepo(dueIn("t1", time.Hour))
	tickets.listErr = errors.New("connection reset")

	res, err := newSweeper(tickets, newFakeUserRepo(), &fakeNotifier{}, nil).OnDailySweep(context.Background())
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "connection reset")
}

func TestOnDailySweep_PagesThroughLargeResults(t *testing.T) {
	var overdue []domain.Ticket
	for i := 0; i < sweepPageSize+5; i++ {
		ticket := dueIn(fmt.Sprintf("t%03d", i), -time.Duration(i+1)*time.Minute)
		overdue = append(overdue, ticket)
	}
	tickets := newFakeTicketRepo(overdue...)

	res, err := newSweeper(tickets, newFakeUserRepo(), &fakeNotifier{}, nil).OnDailySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sweepPageSize+5, res.TicketsBreached)
}

func TestWarningRecipients(t *testing.T) {
	mod := moderator("m1")
	got := warningRecipients(&mod, []domain.User{admin("a1", nil), admin("m1", nil), admin("a1", nil)})
	assert.Equal(t, []string{"m1", "a1"}, userIDs(got))

	assert.Equal(t, []string{"a1"}, userIDs(warningRecipients(nil, []domain.User{admin("a1", nil)})))
}
