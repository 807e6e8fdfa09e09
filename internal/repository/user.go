package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/user"
)

const (
	userColumns = `id, COALESCE(external_id, ''), email, username, role, created_at`

	getUserByIDSQL         = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL      = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	getUserByExternalIDSQL = `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	createUserSQL = `INSERT INTO users (id, external_id, email, username, role)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING created_at`

	listUserIDsByRoleSQL = `SELECT id FROM users WHERE role = $1 ORDER BY id`

	uniqueViolation = "23505"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail looks a user up by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// GetByExternalID looks a user up by the auth provider's identifier.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*user.User, error) {
	return r.getOne(ctx, getUserByExternalIDSQL, externalID)
}

// Create inserts a new user. Duplicate emails or external ids yield
// user.ErrExists.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL,
		u.ID, u.ExternalID, u.Email, u.Username, string(u.Role),
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrExists
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// ListIDsByRole returns the ids of every user with role.
func (r *UserRepository) ListIDsByRole(ctx context.Context, role user.Role) ([]string, error) {
	rows, err := r.pool.Query(ctx, listUserIDsByRoleSQL, string(role))
	if err != nil {
		return nil, fmt.Errorf("listing %s users: %w", role, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (user.User, error) {
		var (
			u    user.User
			role string
		)
		err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Username, &role, &u.CreatedAt)
		u.Role = user.Role(role)
		return u, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}
