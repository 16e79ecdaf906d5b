package service

import (
	"context"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
)

const userPageSize = 500

// CandidateOrder selects how matched candidates are ordered.
type CandidateOrder int

const (
	// OrderRecentlyUpdated sorts by UpdatedAt desc, then ID.
	OrderRecentlyUpdated CandidateOrder = iota
	// OrderLastLogin sorts by LastLogin desc with never-logged-in users last, then ID.
	OrderLastLogin
)

// SkillMatcher finds active moderators whose skills overlap a ticket's required skills.
type SkillMatcher struct {
	users repository.UserRepository
}

// NewSkillMatcher creates the matcher.
func NewSkillMatcher(users repository.UserRepository) *SkillMatcher {
	return &SkillMatcher{users: users}
}

// FindCandidates returns active moderators matching at least one required skill.
// A candidate matches when either tag contains the other, case-insensitively,
// so "java" matches "javascript". An empty skill set matches every active moderator.
func (m *SkillMatcher) FindCandidates(ctx context.Context, requiredSkills []string, order CandidateOrder) ([]domain.User, error) {
	required := domain.NormalizeSkills(requiredSkills)

	active := true
	moderators, err := listAllUsers(ctx, m.users, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleModerator},
		Active: &active,
	})
	if err != nil {
		return nil, err
	}

	matched := make([]domain.User, 0, len(moderators))
	for _, user := range moderators {
		if !user.IsActive || user.Role != domain.RoleModerator {
			continue
		}
		if len(required) == 0 || skillsOverlap(user.Skills, required) {
			matched = append(matched, user)
		}
	}
	SortUsers(matched, order)
	return matched, nil
}

// listAllUsers pages through every user matching filter.
func listAllUsers(ctx context.Context, users repository.UserRepository, filter repository.UserFilter) ([]domain.User, error) {
	filter.Limit = userPageSize
	var all []domain.User
	for offset := 0; ; offset += userPageSize {
		filter.Offset = offset
		page, err := users.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < userPageSize {
			return all, nil
		}
	}
}

func skillsOverlap(candidate, required []string) bool {
	for _, have := range candidate {
		have = strings.ToLower(strings.TrimSpace(have))
		if have == "" {
			continue
		}
		for _, want := range required {
			if strings.Contains(have, want) || strings.Contains(want, have) {
				return true
			}
		}
	}
	return false
}

// SortUsers orders users in place; ID is the final tie-break so results are deterministic.
func SortUsers(users []domain.User, order CandidateOrder) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		switch order {
		case OrderLastLogin:
			switch {
			case a.LastLogin == nil && b.LastLogin != nil:
				return false
			case a.LastLogin != nil && b.LastLogin == nil:
				return true
			case a.LastLogin != nil && b.LastLogin != nil && !a.LastLogin.Equal(*b.LastLogin):
				return a.LastLogin.After(*b.LastLogin)
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})
}
