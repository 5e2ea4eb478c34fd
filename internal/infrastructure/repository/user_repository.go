package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

// UserRepository reads the user directory.
type UserRepository struct {
	conn Conn
}

func NewUserRepository(conn Conn) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = `id, email, full_name, role, company_name, phone, is_active, supervisor_id, created_at`

// Create inserts a user. Used by seeding and tests.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.FullName, u.Role.String(), u.CompanyName, u.Phone, u.Active, u.SupervisorID, u.CreatedAt,
	)
	return wrapError(err, "user", "create")
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrapError(err, "user", "get")
	}
	return u, nil
}

// ListByRole returns active users holding role, ordered by name.
func (r *UserRepository) ListByRole(ctx context.Context, role authz.Role) ([]*user.User, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND is_active ORDER BY full_name`, role.String())
	if err != nil {
		return nil, wrapError(err, "user", "list")
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapError(err, "user", "scan")
		}
		users = append(users, u)
	}
	return users, wrapError(rows.Err(), "user", "list")
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u    user.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.CompanyName, &u.Phone,
		&u.Active, &u.SupervisorID, &u.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := authz.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = parsed
	return &u, nil
}
