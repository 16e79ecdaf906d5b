package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// CreateUserRequest payload.
type CreateUserRequest struct {
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Role   domain.Role `json:"role"`
	Skills []string    `json:"skills"`
}

// UpdateSkillsRequest replaces a user's skills.
type UpdateSkillsRequest struct {
	Skills []string `json:"skills"`
}

// UpdateRoleRequest changes a user's role.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// UserResponse is the wire form of a user.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	Skills    []string    `json:"skills"`
	IsActive  bool        `json:"isActive"`
	LastLogin *time.Time  `json:"lastLogin,omitempty"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Skills:    skills,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
	}
}
