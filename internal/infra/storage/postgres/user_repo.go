package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
)

// UserRepo implements storage.UserRepository using PostgreSQL.
type UserRepo struct {
	store *Store[*DB]
}

// NewUserRepo creates a new PostgreSQL user repository.
func NewUserRepo(store *Store[*DB]) *UserRepo {
	return &UserRepo{store: store}
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	return Query(ctx, r.store, "users.count", func(ctx context.Context, db *DB) (int64, error) {
		return db.CountTable(ctx, "users")
	})
}

// GetByEmail retrieves a user by email. It returns nil when none exists.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := Query(ctx, r.store, "users.get_by_email", func(ctx context.Context, db *DB) (*domain.User, error) {
		var u domain.User
		err := db.GetContext(ctx, &u, `
			SELECT id, email, name, plan, created_at, updated_at
			FROM users
			WHERE email = $1`, email)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create saves a new user, assigning an ID if it has none.
func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Plan == "" {
		user.Plan = "free"
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	err := r.store.Exec(ctx, "users.create", func(ctx context.Context, db *DB) error {
		_, err := db.NamedExecContext(ctx, `
			INSERT INTO users (id, email, name, plan, created_at, updated_at)
			VALUES (:id, :email, :name, :plan, :created_at, :updated_at)`, user)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
