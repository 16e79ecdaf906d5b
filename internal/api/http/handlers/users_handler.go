package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-routing/internal/api/dto"
	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/service"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// UserService manages assignee profiles.
type UserService interface {
	CreateUser(ctx context.Context, input service.UserCreateInput) (*domain.User, error)
	SetSkills(ctx context.Context, id string, skills []string) (*domain.User, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	RecordLogin(ctx context.Context, id string) error
}

// UsersHandler exposes user profile endpoints.
type UsersHandler struct {
	users UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Create handles POST /internal/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.CreateUser(c.UserContext(), service.UserCreateInput{
		Email:  req.Email,
		Name:   req.Name,
		Role:   req.Role,
		Skills: req.Skills,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateSkills handles PUT /internal/users/:id/skills.
func (h *UsersHandler) UpdateSkills(c *fiber.Ctx) error {
	var req dto.UpdateSkillsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.SetSkills(c.UserContext(), c.Params("id"), req.Skills)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateRole handles PUT /internal/users/:id/role.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.SetRole(c.UserContext(), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Login handles POST /internal/users/:id/login, recording a sign-in seen by the identity service.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	if err := h.users.RecordLogin(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
