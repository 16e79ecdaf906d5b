package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-routing/internal/api/dto"
	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/service"
	"github.com/spec-kit/helpdesk-routing/internal/worker"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// TicketService is the ticket operations the handler needs.
type TicketService interface {
	CreateTicket(ctx context.Context, input service.TicketCreateInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	TransitionStatus(ctx context.Context, id string, status domain.TicketStatus, actorID string) (*domain.Ticket, error)
	History(ctx context.Context, id string) ([]domain.TicketHistory, error)
}

// Workflow runs the assignment workflow inline.
type Workflow interface {
	OnTicketCreated(ctx context.Context, in service.TicketCreatedInput) (*service.WorkflowResult, error)
}

// WorkflowQueue accepts workflow runs for background execution.
type WorkflowQueue interface {
	TrySubmit(in service.TicketCreatedInput) error
}

// Notifications sends notifications for human actions.
type Notifications interface {
	OnTicketAssignedManually(ctx context.Context, ticketID, assignedTo, assignedBy string) error
	OnTicketEscalated(ctx context.Context, ticketID, escalatedBy, escalatedTo, reason string) error
}

// TicketsHandler exposes ticket triggers to other internal services.
type TicketsHandler struct {
	tickets       TicketService
	workflow      Workflow
	queue         WorkflowQueue
	notifications Notifications
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketService, workflow Workflow, queue WorkflowQueue, notifications Notifications) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, workflow: workflow, queue: queue, notifications: notifications}
}

// Create handles POST /internal/tickets and queues the assignment workflow.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(req.Priority)})
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Type:        req.Type,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return err
	}

	workflow := "queued"
	if err := h.queue.TrySubmit(service.TicketCreatedInput{TicketID: ticket.ID}); err != nil {
		workflow = "not_queued"
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data":     dto.NewTicketResponse(ticket),
		"workflow": workflow,
	})
}

// Get handles GET /internal/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History handles GET /internal/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.tickets.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistoryResponse(entries)})
}

// RunWorkflow handles POST /internal/tickets/:id/workflow. With ?wait=true the
// workflow runs inline and its result is returned; otherwise it is queued.
func (h *TicketsHandler) RunWorkflow(c *fiber.Ctx) error {
	var req dto.RunWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	in := service.TicketCreatedInput{
		TicketID:    c.Params("id"),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Type:        req.Type,
		CreatedBy:   req.CreatedBy,
	}

	if c.QueryBool("wait") {
		result, err := h.workflow.OnTicketCreated(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": result})
	}

	if err := h.queue.TrySubmit(in); err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			return apperrors.NewRateLimited(map[string]any{"reason": "workflow queue full"})
		}
		return apperrors.NewUnavailable("workflow runner", err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"ticketId": in.TicketID, "status": "queued"}})
}

// Assigned handles POST /internal/tickets/:id/assigned.
func (h *TicketsHandler) Assigned(c *fiber.Ctx) error {
	var req dto.TicketAssignedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AssignedTo) == "" || strings.TrimSpace(req.AssignedBy) == "" {
		return apperrors.NewValidationError("assignedTo and assignedBy required", nil)
	}
	if err := h.notifications.OnTicketAssignedManually(c.UserContext(), c.Params("id"), req.AssignedTo, req.AssignedBy); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"notified": true}})
}

// Escalated handles POST /internal/tickets/:id/escalated.
func (h *TicketsHandler) Escalated(c *fiber.Ctx) error {
	var req dto.TicketEscalatedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.EscalatedBy) == "" || strings.TrimSpace(req.EscalatedTo) == "" {
		return apperrors.NewValidationError("escalatedBy and escalatedTo required", nil)
	}
	if err := h.notifications.OnTicketEscalated(c.UserContext(), c.Params("id"), req.EscalatedBy, req.EscalatedTo, req.Reason); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"notified": true}})
}

// TransitionStatus handles POST /internal/tickets/:id/status.
func (h *TicketsHandler) TransitionStatus(c *fiber.Ctx) error {
	var req dto.TransitionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.TransitionStatus(c.UserContext(), c.Params("id"), req.Status, req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
