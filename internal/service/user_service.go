package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// UserService manages assignee profiles: role, skills and activity.
type UserService struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

// UserCreateInput describes a new account.
type UserCreateInput struct {
	Email  string
	Name   string
	Role   domain.Role
	Skills []string
}

// CreateUser registers an account. Skills are normalized on write.
func (s *UserService) CreateUser(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	details := map[string]any{}
	if !strings.Contains(input.Email, "@") {
		details["email"] = "invalid email"
	}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	if input.Role == "" {
		input.Role = domain.RoleUser
	}
	if !input.Role.Valid() {
		details["role"] = "unknown role"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	user := &domain.User{
		Email:    input.Email,
		Name:     strings.TrimSpace(input.Name),
		Role:     input.Role,
		Skills:   input.Skills,
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// SetSkills replaces a user's skills.
func (s *UserService) SetSkills(ctx context.Context, id string, skills []string) (*domain.User, error) {
	if err := s.users.UpdateSkills(ctx, id, skills); err != nil {
		return nil, s.notFound(err, id)
	}
	return s.get(ctx, id)
}

// SetRole changes a user's role.
func (s *UserService) SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, s.notFound(err, id)
	}
	return s.get(ctx, id)
}

// RecordLogin stamps LastLogin, which orders assignment candidates.
func (s *UserService) RecordLogin(ctx context.Context, id string) error {
	if err := s.users.TouchLastLogin(ctx, id, s.now().UTC()); err != nil {
		return s.notFound(err, id)
	}
	return nil
}

func (s *UserService) get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	return user, nil
}

func (s *UserService) notFound(err error, id string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	return apperrors.MapError(err)
}
