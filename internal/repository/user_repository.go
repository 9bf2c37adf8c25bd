package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examsaathi/backend/internal/model"
)

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// UpsertOnLogin creates the user on first sign-in, otherwise refreshes the
// display name and last login time. created_at is never overwritten.
func (r *UserRepository) UpsertOnLogin(ctx context.Context, name, phone string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, phone, created_at, last_login_at) VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name, last_login_at = NOW()
		 RETURNING id, name, phone, created_at, last_login_at`,
		name, phone,
	).Scan(&u.ID, &u.Name, &u.Phone, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByPhone retrieves a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone, created_at, last_login_at FROM users WHERE phone = $1`, phone,
	).Scan(&u.ID, &u.Name, &u.Phone, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
