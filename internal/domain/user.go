package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User is an account; moderators and admins are assignment targets.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Skills    []string
	IsActive  bool
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignable reports whether the user may receive tickets.
func (u *User) Assignable() bool {
	return u.IsActive && (u.Role == RoleModerator || u.Role == RoleAdmin)
}

// NormalizeSkills trims, lowercases and deduplicates skill tags, keeping first-seen order.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		tag := strings.ToLower(strings.TrimSpace(s))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
