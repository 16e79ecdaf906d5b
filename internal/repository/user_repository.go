package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// UserFilter defines query params for user listing.
type UserFilter struct {
	Roles  []domain.Role
	Active *bool
	Limit  int
	Offset int
}

// UserRepository defines persistence access for accounts and assignees.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	UpdateSkills(ctx context.Context, id string, skills []string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

const userColumns = `id, email, name, role, skills, is_active, last_login, created_at, updated_at`

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Skills = domain.NormalizeSkills(user.Skills)

	const query = `
        INSERT INTO users (id, email, name, role, skills, is_active, last_login)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		string(user.Role),
		user.Skills,
		user.IsActive,
		user.LastLogin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Skills,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	clauses := []string{}

	if len(filter.Roles) > 0 {
		placeholders := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			args = append(args, string(role))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("role IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("is_active=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY updated_at DESC, id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.Skills,
			&user.IsActive,
			&user.LastLogin,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

// UpdateSkills replaces the skill set; tags are normalized and deduplicated on every write.
func (r *userRepository) UpdateSkills(ctx context.Context, id string, skills []string) error {
	const query = `UPDATE users SET skills=$1, updated_at=NOW() WHERE id=$2`
	return expectOneRow(r.db.Exec(ctx, query, domain.NormalizeSkills(skills), id))
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	const query = `UPDATE users SET role=$1, updated_at=NOW() WHERE id=$2`
	return expectOneRow(r.db.Exec(ctx, query, string(role), id))
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login=$1 WHERE id=$2`
	return expectOneRow(r.db.Exec(ctx, query, at, id))
}
