package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	roleOfSQL = `SELECT role FROM user_roles WHERE user_id = $1`

	listUsersSQL = `SELECT p.id, p.email, p.full_name, COALESCE(r.role, 'user'), p.created_at
		FROM profiles p LEFT JOIN user_roles r ON r.user_id = p.id
		ORDER BY p.created_at DESC`

	profileExistsSQL = `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`

	setRoleSQL = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`

	upsertProfileSQL = `INSERT INTO profiles (id, email, full_name, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name`
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository reads profiles and manages roles.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// RoleOf returns the user's role, defaulting to auth.RoleUser.
func (r *UserRepository) RoleOf(ctx context.Context, userID string) (auth.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, roleOfSQL, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.RoleUser, nil
	}
	if err != nil {
		return "", fmt.Errorf("getting role of %q: %w", userID, err)
	}
	return auth.Role(role), nil
}

// ListUsers returns profiles with their role, newest first.
func (r *UserRepository) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (auth.User, error) {
		var (
			u    auth.User
			role string
		)
		err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.CreatedAt)
		u.Role = auth.Role(role)
		return u, err
	})
}

// SetRole assigns a role to an existing profile.
func (r *UserRepository) SetRole(ctx context.Context, userID string, role auth.Role) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, profileExistsSQL, userID).Scan(&exists); err != nil {
			return fmt.Errorf("checking profile %q: %w", userID, err)
		}
		if !exists {
			return auth.ErrUserNotFound
		}
		if _, err := tx.Exec(ctx, setRoleSQL, userID, string(role)); err != nil {
			return fmt.Errorf("setting role of %q: %w", userID, err)
		}
		return nil
	})
}

// UpsertProfile creates or refreshes a profile row.
func (r *UserRepository) UpsertProfile(ctx context.Context, u auth.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := r.pool.Exec(ctx, upsertProfileSQL, u.ID, u.Email, u.FullName, createdAt); err != nil {
		return fmt.Errorf("upserting profile %q: %w", u.ID, err)
	}
	return nil
}
