package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage"
)

// PostRepo implements storage.PostRepository using PostgreSQL.
type PostRepo struct {
	store *Store[*DB]
}

// NewPostRepo creates a new PostgreSQL post repository.
func NewPostRepo(store *Store[*DB]) *PostRepo {
	return &PostRepo{store: store}
}

// Schedule saves a post in the scheduled state.
func (r *PostRepo) Schedule(ctx context.Context, post *domain.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.Status = domain.PostStatusScheduled
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now

	err := r.store.Exec(ctx, "posts.schedule", func(ctx context.Context, db *DB) error {
		_, err := db.NamedExecContext(ctx, `
			INSERT INTO posts (id, user_id, platform, content, status, scheduled_at, created_at, updated_at)
			VALUES (:id, :user_id, :platform, :content, :status, :scheduled_at, :created_at, :updated_at)`, post)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to schedule post: %w", err)
	}
	return nil
}

// ScheduleBatch saves several posts atomically; either all are scheduled
// or none are.
func (r *PostRepo) ScheduleBatch(ctx context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, post := range posts {
		if post.ID == "" {
			post.ID = uuid.NewString()
		}
		post.Status = domain.PostStatusScheduled
		post.CreatedAt, post.UpdatedAt = now, now
	}

	err := r.store.Exec(ctx, "posts.schedule_batch", func(ctx context.Context, db *DB) error {
		return db.InTx(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO posts (id, user_id, platform, content, status, scheduled_at, created_at, updated_at)
				VALUES (:id, :user_id, :platform, :content, :status, :scheduled_at, :created_at, :updated_at)`, posts)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %d posts: %w", len(posts), err)
	}
	return nil
}

// ListScheduled retrieves a user's posts scheduled within [from, to), earliest first.
func (r *PostRepo) ListScheduled(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]*domain.Post, error) {
	posts, err := Query(ctx, r.store, "posts.list_scheduled", func(ctx context.Context, db *DB) ([]*domain.Post, error) {
		var posts []*domain.Post
		err := db.SelectContext(ctx, &posts, `
			SELECT id, user_id, platform, content, status, scheduled_at, created_at, updated_at
			FROM posts
			WHERE user_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
			ORDER BY scheduled_at`, userID, from, to)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// UpdateStatus updates the publishing status of a post.
func (r *PostRepo) UpdateStatus(ctx context.Context, id string, status domain.PostStatus) error {
	err := r.store.Exec(ctx, "posts.update_status", func(ctx context.Context, db *DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE posts SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update post status: %w", err)
	}
	return nil
}

var (
	_ storage.PostRepository = (*PostRepo)(nil)
	_ storage.UserRepository = (*UserRepo)(nil)
)
