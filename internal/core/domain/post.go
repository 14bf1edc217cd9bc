package domain

import "time"

// PostStatus tracks a calendar entry through publishing.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// Post is a content calendar entry for one social platform.
type Post struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	Platform    string     `db:"platform"`
	Content     string     `db:"content"`
	Status      PostStatus `db:"status"`
	ScheduledAt time.Time  `db:"scheduled_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
