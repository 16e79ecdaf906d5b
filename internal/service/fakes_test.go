package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-routing/internal/ai"
	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
)

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return baseTime }

type fakeTicketRepo struct {
	mu        sync.Mutex
	tickets   map[string]*domain.Ticket
	workloads map[string]int64

	getErr    error
	listErr   error
	applyErr  error
	assignErr error
	countErr  error

	failedAnalysis map[string]string
	markCalls      int
}

func newFakeTicketRepo(tickets ...domain.Ticket) *fakeTicketRepo {
	r := &fakeTicketRepo{tickets: map[string]*domain.Ticket{}, failedAnalysis: map[string]string{}}
	for i := range tickets {
		t := tickets[i]
		r.tickets[t.ID] = &t
	}
	return r
}

func (r *fakeTicketRepo) get(id string) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.RequiredSkills = domain.NormalizeSkills(ticket.RequiredSkills)
	if err := ticket.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if t := r.get(id); t != nil {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) matching(filter repository.TicketFilter) []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.SLABreached != nil && t.SLABreached != *filter.SLABreached {
			continue
		}
		if filter.SLADueBefore != nil && !t.SLADueDate.Before(*filter.SLADueBefore) {
			continue
		}
		if filter.SLADueAtOrBefore != nil && t.SLADueDate.After(*filter.SLADueAtOrBefore) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SLADueDate.Equal(out[j].SLADueDate) {
			return out[i].SLADueDate.Before(out[j].SLADueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (r *fakeTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *fakeTicketRepo) CountOpenAssigned(ctx context.Context, assigneeID string) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	if r.workloads != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.workloads[assigneeID], nil
	}
	return r.Count(ctx, repository.TicketFilter{AssignedTo: &assigneeID, Statuses: domain.WorkableStatuses()})
}

func (r *fakeTicketRepo) ApplyAnalysis(_ context.Context, id string, update repository.AnalysisUpdate) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.RequiredSkills = domain.NormalizeSkills(update.RequiredSkills)
	t.AINotes = update.AINotes
	t.AIResponse = update.AIResponse
	t.AIProcessed = update.AIProcessed
	t.AIProcessingError = update.AIProcessingError
	t.EstimatedResolutionTime = update.EstimatedResolutionTime
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	return nil
}

func (r *fakeTicketRepo) MarkAnalysisFailed(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.AIProcessed = false
	t.AIProcessingError = &reason
	r.failedAnalysis[id] = reason
	return nil
}

func (r *fakeTicketRepo) Assign(ctx context.Context, id, assigneeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.assignErr != nil {
		return r.assignErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.AssignedTo = &assigneeID
	if t.Status == domain.TicketStatusOpen {
		t.Status = domain.TicketStatusInProgress
	}
	return nil
}

func (r *fakeTicketRepo) MarkSLABreached(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok || t.SLABreached {
		return false, nil
	}
	t.SLABreached = true
	return true, nil
}

func (r *fakeTicketRepo) TransitionStatus(_ context.Context, id string, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Status = status
	switch status {
	case domain.TicketStatusResolved:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &at
			hours := at.Sub(t.CreatedAt).Hours()
			t.ActualResolutionTime = &hours
		}
	case domain.TicketStatusClosed:
		if t.ClosedAt == nil {
			t.ClosedAt = &at
		}
	case domain.TicketStatusEscalated:
		if t.EscalatedAt == nil {
			t.EscalatedAt = &at
		}
	}
	cp := *t
	return &cp, nil
}

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	listErr   error
	listCalls int
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		r.users[u.ID] = &u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Skills = domain.NormalizeSkills(user.Skills)
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []domain.User
	for _, u := range r.users {
		if len(filter.Roles) > 0 {
			match := false
			for _, role := range filter.Roles {
				if u.Role == role {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		out = append(out, *u)
	}
	SortUsers(out, OrderRecentlyUpdated)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateSkills(_ context.Context, id string, skills []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Skills = domain.NormalizeSkills(skills)
	return nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Role = role
	return nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.LastLogin = &at
	return nil
}

type fakeAnalyzer struct {
	result *domain.Analysis
	err    error
	calls  []ai.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req ai.Request) (*domain.Analysis, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []domain.Notification
	err     error
	failFor map[string]error
}

func (f *fakeNotifier) Notify(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if n.Recipient != nil {
		if err, ok := f.failFor[n.Recipient.ID]; ok {
			return err
		}
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.Recipient.ID)
	}
	return out
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrString(s string) *string { return &s }

func moderator(id string, skills ...string) domain.User {
	return domain.User{ID: id, Email: id + "@example.com", Name: id, Role: domain.RoleModerator, Skills: skills, IsActive: true}
}

func admin(id string, lastLogin *time.Time) domain.User {
	return domain.User{ID: id, Email: id + "@example.com", Name: id, Role: domain.RoleAdmin, IsActive: true, LastLogin: lastLogin}
}

func reporter(id string) domain.User {
	return domain.User{ID: id, Email: id + "@example.com", Name: id, Role: domain.RoleUser, IsActive: true}
}

func openTicket(id string) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		Title:       "VPN keeps dropping",
		Description: "The VPN disconnects every few minutes.",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
		Type:        "network",
		CreatedBy:   "reporter",
		CreatedAt:   baseTime.Add(-time.Hour),
		SLADueDate:  baseTime.Add(71 * time.Hour),
	}
}
