package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/model"
)

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByUID retrieves a user by login UID.
func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, uid, name, role, password_hash FROM users WHERE uid = $1`, uid,
	).Scan(&u.ID, &u.UID, &u.Name, &u.Role, &u.PasswordHash)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, uid, name, role, password_hash FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.UID, &u.Name, &u.Role, &u.PasswordHash)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (uid, name, role, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		u.UID, u.Name, u.Role, u.PasswordHash,
	).Scan(&u.ID)
}
