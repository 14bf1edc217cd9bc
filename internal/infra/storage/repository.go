package storage

import (
	"context"
	"errors"
	"time"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("record not found")
)

// UserRepository handles account storage operations
type UserRepository interface {
	// Count returns the number of accounts
	Count(ctx context.Context) (int64, error)

	// GetByEmail retrieves an account by email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Create saves a new account
	Create(ctx context.Context, user *domain.User) error
}

// PostRepository handles content calendar storage operations
type PostRepository interface {
	// Schedule saves a post for later publishing
	Schedule(ctx context.Context, post *domain.Post) error

	// ScheduleBatch saves several posts in one transaction
	ScheduleBatch(ctx context.Context, posts []*domain.Post) error

	// ListScheduled retrieves a user's posts scheduled within [from, to)
	ListScheduled(ctx context.Context, userID string, from, to time.Time) ([]*domain.Post, error)

	// UpdateStatus updates the publishing status of a post
	UpdateStatus(ctx context.Context, id string, status domain.PostStatus) error
}
