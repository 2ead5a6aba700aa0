package blog

import (
	"context"
)

// Store is the persistence contract both backends satisfy. The migration
// runner is a pure transform from one Store to another, which is why the
// Import methods exist: unlike CreatePost/AddComment they preserve the
// record's original identity, counters and timestamps.
type Store interface {
	// CreatePost stores a new post under a filename generated from the
	// creation date and title. A duplicate filename is a ConflictError.
	CreatePost(ctx context.Context, title, content string, tags []string, author string) (*Post, error)

	// GetPost returns the post or a NotFoundError.
	GetPost(ctx context.Context, filename string) (*Post, error)

	// ListPosts returns summaries of all posts, newest creation time first.
	ListPosts(ctx context.Context) ([]PostSummary, error)

	// DeletePost writes a DeletedPost backup, removes the post and cascades
	// to its comments. It returns false (and no error) when the post does
	// not exist.
	DeletePost(ctx context.Context, filename, deletedBy string) (bool, error)

	// IncrementView records an analytics event and atomically increments the
	// post's view counter. Concurrent calls for the same filename must not
	// lose increments.
	IncrementView(ctx context.Context, filename string, meta ViewMeta) error

	// AddComment validates, sanitizes and stores a comment. Empty text or
	// text over the length limit is a ValidationError; an unknown post is a
	// NotFoundError.
	AddComment(ctx context.Context, postFilename, username, text, ip string) (*Comment, error)

	// ListComments returns a post's comments, oldest first. A post with no
	// comments yields an empty slice.
	ListComments(ctx context.Context, postFilename string) ([]Comment, error)

	// DeleteComment removes a comment and returns it. Both keys must match;
	// otherwise a NotFoundError.
	DeleteComment(ctx context.Context, postFilename, commentID string) (*Comment, error)

	// ImportPost inserts a post verbatim, preserving filename, views and
	// timestamps. Used by the migration runner.
	ImportPost(ctx context.Context, post *Post) error

	// ImportComment inserts a comment verbatim, preserving its id.
	ImportComment(ctx context.Context, comment *Comment) error

	// Close releases backend resources, draining any connection pool.
	Close()
}
