package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/service"
	"github.com/spec-kit/helpdesk-routing/internal/worker"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

type stubTickets struct {
	created    service.TicketCreateInput
	ticket     *domain.Ticket
	err        error
	transition domain.TicketStatus
}

func (s *stubTickets) CreateTicket(_ context.Context, in service.TicketCreateInput) (*domain.Ticket, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	return s.ticket, nil
}

func (s *stubTickets) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.ticket == nil || s.ticket.ID != id {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return s.ticket, nil
}

func (s *stubTickets) TransitionStatus(_ context.Context, id string, status domain.TicketStatus, _ string) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", nil)
	}
	s.transition = status
	t := *s.ticket
	t.Status = status
	return &t, nil
}

func (s *stubTickets) History(_ context.Context, id string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(context.Background(), id); err != nil {
		return nil, err
	}
	actor := "m1"
	return []domain.TicketHistory{
		{ID: "1", TicketID: id, EventID: "e1", EventType: "ticket_analyzed", System: true, Payload: map[string]any{"priority": "high"}},
		{ID: "2", TicketID: id, EventID: "e2", EventType: "ticket_status_changed", ActorID: &actor, Payload: map[string]any{"new_status": "resolved"}},
	}, nil
}

type stubWorkflow struct {
	in  service.TicketCreatedInput
	err error
}

func (s *stubWorkflow) OnTicketCreated(_ context.Context, in service.TicketCreatedInput) (*service.WorkflowResult, error) {
	s.in = in
	if s.err != nil {
		return nil, s.err
	}
	return &service.WorkflowResult{TicketID: in.TicketID, ProcessingComplete: true}, nil
}

type stubQueue struct {
	submitted []service.TicketCreatedInput
	err       error
}

func (s *stubQueue) TrySubmit(in service.TicketCreatedInput) error {
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, in)
	return nil
}

type stubNotifications struct {
	calls []string
	err   error
}

func (s *stubNotifications) OnTicketAssignedManually(_ context.Context, ticketID, assignedTo, assignedBy string) error {
	s.calls = append(s.calls, "assigned:"+ticketID+":"+assignedTo+":"+assignedBy)
	return s.err
}

func (s *stubNotifications) OnTicketEscalated(_ context.Context, ticketID, escalatedBy, escalatedTo, reason string) error {
	s.calls = append(s.calls, "escalated:"+ticketID+":"+escalatedBy+":"+escalatedTo+":"+reason)
	return s.err
}

type stubSweeper struct {
	err error
}

func (s stubSweeper) OnDailySweep(context.Context) (*service.SweepResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.SweepResult{TicketsNearBreach: 2, TicketsBreached: 1}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		domainErr := apperrors.ToDomainError(err)
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": domainErr.Code}})
	}})
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func sampleTicket() *domain.Ticket {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	return &domain.Ticket{
		ID:          "t1",
		Title:       "Printer on fire",
		Description: "The second floor printer is smoking",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		Type:        "hardware",
		CreatedBy:   "u1",
		SLADueDate:  now.Add(24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ticketsApp(tickets *stubTickets, wf *stubWorkflow, queue *stubQueue, notes *stubNotifications) *fiber.App {
	h := NewTicketsHandler(tickets, wf, queue, notes)
	app := testApp()
	app.Post("/tickets", h.Create)
	app.Get("/tickets/:id", h.Get)
	app.Post("/tickets/:id/workflow", h.RunWorkflow)
	app.Post("/tickets/:id/assigned", h.Assigned)
	app.Post("/tickets/:id/escalated", h.Escalated)
	app.Post("/tickets/:id/status", h.TransitionStatus)
	app.Get("/tickets/:id/history", h.History)
	return app
}

func TestTicketsHandler_CreateQueuesWorkflow(t *testing.T) {
	tickets := &stubTickets{ticket: sampleTicket()}
	queue := &stubQueue{}
	app := ticketsApp(tickets, &stubWorkflow{}, queue, &stubNotifications{})

	status, body := do(t, app, http.MethodPost, "/tickets",
		`{"title":"Printer on fire","description":"The second floor printer is smoking","priority":"high","type":"hardware","createdBy":"u1"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "queued", body["workflow"])
	assert.Equal(t, domain.TicketPriorityHigh, tickets.created.Priority)
	require.Len(t, queue.submitted, 1)
	assert.Equal(t, "t1", queue.submitted[0].TicketID)

	data := body["data"].(map[string]any)
	assert.Equal(t, "t1", data["id"])
	assert.Equal(t, []any{}, data["requiredSkills"])
}

func TestTicketsHandler_CreateRejectsBadPriority(t *testing.T) {
	app := ticketsApp(&stubTickets{ticket: sampleTicket()}, &stubWorkflow{}, &stubQueue{}, &stubNotifications{})
	status, body := do(t, app, http.MethodPost, "/tickets", `{"title":"Printer on fire","priority":"panic"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidation, errorCode(body))
}

func TestTicketsHandler_CreateReportsUnqueuedWorkflow(t *testing.T) {
	queue := &stubQueue{err: worker.ErrQueueFull}
	app := ticketsApp(&stubTickets{ticket: sampleTicket()}, &stubWorkflow{}, queue, &stubNotifications{})
	status, body := do(t, app, http.MethodPost, "/tickets", `{"title":"Printer on fire","createdBy":"u1"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "not_queued", body["workflow"])
}

func TestTicketsHandler_Get(t *testing.T) {
	app := ticketsApp(&stubTickets{ticket: sampleTicket()}, &stubWorkflow{}, &stubQueue{}, &stubNotifications{})

	status, _ := do(t, app, http.MethodGet, "/tickets/t1", "")
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodGet, "/tickets/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))
}

func TestTicketsHandler_RunWorkflow(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		queue := &stubQueue{}
		app := ticketsApp(&stubTickets{}, &stubWorkflow{}, queue, &stubNotifications{})
		status, body := do(t, app, http.MethodPost, "/tickets/t1/workflow", `{"type":"network"}`)
		assert.Equal(t, http.StatusAccepted, status)
		assert.Equal(t, "queued", body["data"].(map[string]any)["status"])
		require.Len(t, queue.submitted, 1)
		assert.Equal(t, "network", queue.submitted[0].Type)
	})

	t.Run("queue full", func(t *testing.T) {
		app := ticketsApp(&stubTickets{}, &stubWorkflow{}, &stubQueue{err: worker.ErrQueueFull}, &stubNotifications{})
		status, body := do(t, app, http.MethodPost, "/tickets/t1/workflow", "")
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, apperrors.CodeRateLimited, errorCode(body))
	})

	t.Run("runner stopped", func(t *testing.T) {
		app := ticketsApp(&stubTickets{}, &stubWorkflow{}, &stubQueue{err: worker.ErrRunnerStopped}, &stubNotifications{})
		status, _ := do(t, app, http.MethodPost, "/tickets/t1/workflow", "")
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("wait returns result", func(t *testing.T) {
		wf := &stubWorkflow{}
		app := ticketsApp(&stubTickets{}, wf, &stubQueue{}, &stubNotifications{})
		status, body := do(t, app, http.MethodPost, "/tickets/t1/workflow?wait=true", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "t1", wf.in.TicketID)
		assert.Equal(t, true, body["data"].(map[string]any)["processingComplete"])
	})

	t.Run("wait on missing ticket", func(t *testing.T) {
		wf := &stubWorkflow{err: apperrors.NewNotFound("ticket", nil)}
		app := ticketsApp(&stubTickets{}, wf, &stubQueue{}, &stubNotifications{})
		status, _ := do(t, app, http.MethodPost, "/tickets/nope/workflow?wait=true", "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestTicketsHandler_NotificationTriggers(t *testing.T) {
	notes := &stubNotifications{}
	app := ticketsApp(&stubTickets{}, &stubWorkflow{}, &stubQueue{}, notes)

	status, _ := do(t, app, http.MethodPost, "/tickets/t1/assigned", `{"assignedTo":"m1","assignedBy":"a1"}`)
	assert.Equal(t, http.StatusAccepted, status)

	status, _ = do(t, app, http.MethodPost, "/tickets/t1/escalated", `{"escalatedBy":"m1","escalatedTo":"a1","reason":"vip"}`)
	assert.Equal(t, http.StatusAccepted, status)

	assert.Equal(t, []string{"assigned:t1:m1:a1", "escalated:t1:m1:a1:vip"}, notes.calls)

	status, _ = do(t, app, http.MethodPost, "/tickets/t1/assigned", `{"assignedTo":"m1"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	notes.err = apperrors.NewUnavailable("notifier", errors.New("smtp down"))
	status, _ = do(t, app, http.MethodPost, "/tickets/t1/escalated", `{"escalatedBy":"m1","escalatedTo":"a1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestTicketsHandler_TransitionStatus(t *testing.T) {
	tickets := &stubTickets{ticket: sampleTicket()}
	app := ticketsApp(tickets, &stubWorkflow{}, &stubQueue{}, &stubNotifications{})

	status, body := do(t, app, http.MethodPost, "/tickets/t1/status", `{"status":"resolved","actorId":"m1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TicketStatusResolved, tickets.transition)
	assert.Equal(t, "resolved", body["data"].(map[string]any)["status"])

	status, _ = do(t, app, http.MethodPost, "/tickets/t1/status", `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTicketsHandler_History(t *testing.T) {
	app := ticketsApp(&stubTickets{ticket: sampleTicket()}, &stubWorkflow{}, &stubQueue{}, &stubNotifications{})

	status, body := do(t, app, http.MethodGet, "/tickets/t1/history", "")
	require.Equal(t, http.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "ticket_analyzed", first["eventType"])
	assert.Equal(t, true, first["system"])
	assert.Equal(t, "m1", entries[1].(map[string]any)["actorId"])

	status, _ = do(t, app, http.MethodGet, "/tickets/nope/history", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSLAHandler_Sweep(t *testing.T) {
	app := testApp()
	app.Post("/sweep", NewSLAHandler(stubSweeper{}).Sweep)
	status, body := do(t, app, http.MethodPost, "/sweep", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["ticketsNearBreach"])
	assert.EqualValues(t, 1, data["ticketsBreached"])

	app = testApp()
	app.Post("/sweep", NewSLAHandler(stubSweeper{err: errors.New("db down")}).Sweep)
	status, _ = do(t, app, http.MethodPost, "/sweep", "")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHealthHandler(t *testing.T) {
	app := testApp()
	healthy := NewHealthHandler("helpdesk-routing", "test", map[string]Pinger{"postgres": stubPinger{}, "redis": stubPinger{}})
	app.Get("/live", healthy.Live)
	app.Get("/ready", healthy.Ready)

	status, body := do(t, app, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = do(t, app, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	degraded := NewHealthHandler("helpdesk-routing", "test", map[string]Pinger{"postgres": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}})
	app.Get("/ready-degraded", degraded.Ready)
	status, body = do(t, app, http.MethodGet, "/ready-degraded", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "ok", details["postgres"])
	assert.Equal(t, "refused", details["redis"])
}

type stubUsers struct {
	users map[string]*domain.User
}

func (s *stubUsers) CreateUser(_ context.Context, in service.UserCreateInput) (*domain.User, error) {
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", nil)
	}
	u := &domain.User{ID: "u-new", Email: in.Email, Name: in.Name, Role: in.Role, Skills: domain.NormalizeSkills(in.Skills), IsActive: true}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubUsers) SetSkills(_ context.Context, id string, skills []string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	u.Skills = domain.NormalizeSkills(skills)
	return u, nil
}

func (s *stubUsers) SetRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	u.Role = role
	return u, nil
}

func (s *stubUsers) RecordLogin(_ context.Context, id string) error {
	u, ok := s.users[id]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}

func TestUsersHandler(t *testing.T) {
	users := &stubUsers{users: map[string]*domain.User{}}
	h := NewUsersHandler(users)
	app := testApp()
	app.Post("/users", h.Create)
	app.Put("/users/:id/skills", h.UpdateSkills)
	app.Put("/users/:id/role", h.UpdateRole)
	app.Post("/users/:id/login", h.Login)

	status, body := do(t, app, http.MethodPost, "/users",
		`{"email":"mod@example.com","name":"Mod","role":"moderator","skills":["Network"," network ","VPN"]}`)
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"network", "vpn"}, data["skills"])

	status, _ = do(t, app, http.MethodPost, "/users", `{"email":"x@example.com","role":"overlord"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodPut, "/users/u-new/skills", `{"skills":["Printers"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"printers"}, body["data"].(map[string]any)["skills"])

	status, body = do(t, app, http.MethodPut, "/users/u-new/role", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", body["data"].(map[string]any)["role"])

	status, _ = do(t, app, http.MethodPost, "/users/u-new/login", "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.NotNil(t, users.users["u-new"].LastLogin)

	status, _ = do(t, app, http.MethodPut, "/users/ghost/skills", `{"skills":["x"]}`)
	assert.Equal(t, http.StatusNotFound, status)
}
