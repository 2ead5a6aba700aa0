package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// PGStore is the relational backend on a bounded pgx connection pool.
// Comment cascade deletion is enforced by the schema's ON DELETE CASCADE;
// view increments happen inside the UPDATE statement so concurrent requests
// cannot lose counts.
type PGStore struct {
	pool *pgxpool.Pool
	// acquireTimeout bounds the wait for a pool connection; exceeding it is
	// a resource-exhaustion failure rather than an indefinite block.
	acquireTimeout time.Duration
	logger         *zap.Logger
}

// NewPGStore wraps an existing pool.
func NewPGStore(pool *pgxpool.Pool, acquireTimeout time.Duration, logger *zap.Logger) *PGStore {
	return &PGStore{pool: pool, acquireTimeout: acquireTimeout, logger: logger}
}

// withTimeout derives the per-query context used for every statement.
func (s *PGStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.acquireTimeout)
}

// CreatePost inserts a post under a generated filename. The primary key
// constraint turns a date+title collision into a ConflictError.
func (s *PGStore) CreatePost(ctx context.Context, title, content string, tags []string, author string) (*Post, error) {
	now := time.Now().UTC()
	filename := GenerateFilename(now, title)
	if strings.HasSuffix(filename, "-") {
		return nil, apperror.NewValidationError("title contains no usable characters", nil)
	}
	if tags == nil {
		tags = []string{}
	}

	post := &Post{
		Filename:  filename,
		Title:     title,
		Content:   content,
		Tags:      tags,
		Author:    author,
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.pool.Exec(qctx, `
		INSERT INTO posts (filename, title, content, tags, author, views, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		post.Filename, post.Title, post.Content, post.Tags, post.Author,
		post.Published, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperror.NewConflictError(fmt.Sprintf("a post named %q already exists", filename), nil)
		}
		return nil, apperror.NewStorageError("failed to create post", err)
	}
	return post, nil
}

// GetPost returns a single post by filename.
func (s *PGStore) GetPost(ctx context.Context, filename string) (*Post, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var post Post
	err := s.pool.QueryRow(qctx, `
		SELECT filename, title, content, tags, author, views, published, created_at, updated_at
		FROM posts WHERE filename = $1`, filename).
		Scan(&post.Filename, &post.Title, &post.Content, &post.Tags, &post.Author,
			&post.Views, &post.Published, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("post not found", nil)
		}
		return nil, apperror.NewStorageError("failed to get post", err)
	}
	return &post, nil
}

// ListPosts returns summaries newest first.
func (s *PGStore) ListPosts(ctx context.Context) ([]PostSummary, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(qctx, `
		SELECT filename, title, tags, author, views, published, created_at
		FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperror.NewStorageError("failed to list posts", err)
	}
	defer rows.Close()

	summaries := []PostSummary{}
	for rows.Next() {
		var sum PostSummary
		if err := rows.Scan(&sum.Filename, &sum.Title, &sum.Tags, &sum.Author,
			&sum.Views, &sum.Published, &sum.CreatedAt); err != nil {
			return nil, apperror.NewStorageError("failed to scan post summary", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewStorageError("failed to list posts", err)
	}
	return summaries, nil
}

// DeletePost writes the backup snapshot and removes the post in one
// transaction; the comments go with it via the FK cascade.
func (s *PGStore) DeletePost(ctx context.Context, filename, deletedBy string) (bool, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(qctx)
	if err != nil {
		return false, apperror.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback(qctx)

	var post Post
	err = tx.QueryRow(qctx, `
		SELECT filename, title, content, tags, author, views, published, created_at, updated_at
		FROM posts WHERE filename = $1 FOR UPDATE`, filename).
		Scan(&post.Filename, &post.Title, &post.Content, &post.Tags, &post.Author,
			&post.Views, &post.Published, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperror.NewStorageError("failed to load post for deletion", err)
	}

	snapshot, err := json.Marshal(post)
	if err != nil {
		return false, apperror.NewStorageError("failed to encode deletion backup", err)
	}
	if _, err := tx.Exec(qctx, `
		INSERT INTO deleted_posts (filename, snapshot, deleted_by, deleted_at)
		VALUES ($1, $2, $3, $4)`,
		post.Filename, snapshot, deletedBy, time.Now().UTC()); err != nil {
		return false, apperror.NewStorageError("failed to write deletion backup", err)
	}

	if _, err := tx.Exec(qctx, `DELETE FROM posts WHERE filename = $1`, filename); err != nil {
		return false, apperror.NewStorageError("failed to delete post", err)
	}

	if err := tx.Commit(qctx); err != nil {
		return false, apperror.NewStorageError("failed to commit deletion", err)
	}

	s.logger.Info("post deleted",
		zap.String("filename", filename),
		zap.String("deleted_by", deletedBy))
	return true, nil
}

// IncrementView bumps the counter in SQL, so the increment is atomic at the
// storage layer, and records the analytics event.
func (s *PGStore) IncrementView(ctx context.Context, filename string, meta ViewMeta) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(qctx, `UPDATE posts SET views = views + 1 WHERE filename = $1`, filename)
	if err != nil {
		return apperror.NewStorageError("failed to increment views", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError("post not found", nil)
	}

	if _, err := s.pool.Exec(qctx, `
		INSERT INTO post_views (post_filename, ip, user_agent, referer, viewed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		filename, meta.IP, meta.UserAgent, meta.Referer, meta.ViewedAt); err != nil {
		// The counter is authoritative; the event row is best-effort.
		s.logger.Warn("failed to record view event", zap.String("filename", filename), zap.Error(err))
	}
	return nil
}

// AddComment validates, sanitizes and inserts a comment.
func (s *PGStore) AddComment(ctx context.Context, postFilename, username, text, ip string) (*Comment, error) {
	escapedUsername, escapedText, err := sanitizeComment(username, text)
	if err != nil {
		return nil, err
	}

	comment := &Comment{
		ID:           uuid.NewString(),
		PostFilename: postFilename,
		Username:     escapedUsername,
		Text:         escapedText,
		IP:           ip,
		CreatedAt:    time.Now().UTC(),
	}

	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err = s.pool.Exec(qctx, `
		INSERT INTO comments (id, post_filename, username, text, ip, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		comment.ID, comment.PostFilename, comment.Username, comment.Text, comment.IP, comment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// Foreign key violation: the post does not exist.
			return nil, apperror.NewNotFoundError("post not found", nil)
		}
		return nil, apperror.NewStorageError("failed to add comment", err)
	}
	return comment, nil
}

// ListComments returns a post's comments oldest first.
func (s *PGStore) ListComments(ctx context.Context, postFilename string) ([]Comment, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(qctx, `
		SELECT id, post_filename, username, text, COALESCE(ip, ''), created_at
		FROM comments WHERE post_filename = $1 ORDER BY created_at ASC`, postFilename)
	if err != nil {
		return nil, apperror.NewStorageError("failed to list comments", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostFilename, &c.Username, &c.Text, &c.IP, &c.CreatedAt); err != nil {
			return nil, apperror.NewStorageError("failed to scan comment", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewStorageError("failed to list comments", err)
	}
	return comments, nil
}

// DeleteComment removes the comment matching both keys and returns it.
func (s *PGStore) DeleteComment(ctx context.Context, postFilename, commentID string) (*Comment, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var c Comment
	err := s.pool.QueryRow(qctx, `
		DELETE FROM comments WHERE post_filename = $1 AND id = $2
		RETURNING id, post_filename, username, text, COALESCE(ip, ''), created_at`,
		postFilename, commentID).
		Scan(&c.ID, &c.PostFilename, &c.Username, &c.Text, &c.IP, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("comment not found", nil)
		}
		return nil, apperror.NewStorageError("failed to delete comment", err)
	}
	return &c, nil
}

// ImportPost inserts a post verbatim, preserving identity, counters and
// timestamps.
func (s *PGStore) ImportPost(ctx context.Context, post *Post) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(qctx, `
		INSERT INTO posts (filename, title, content, tags, author, views, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.Filename, post.Title, post.Content, tags, post.Author,
		post.Views, post.Published, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewConflictError(fmt.Sprintf("a post named %q already exists", post.Filename), nil)
		}
		return apperror.NewStorageError("failed to import post", err)
	}
	return nil
}

// ImportComment inserts a comment verbatim, preserving its id.
func (s *PGStore) ImportComment(ctx context.Context, comment *Comment) error {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(qctx, `
		INSERT INTO comments (id, post_filename, username, text, ip, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		comment.ID, comment.PostFilename, comment.Username, comment.Text, comment.IP, comment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewConflictError("comment already exists", nil)
		}
		return apperror.NewStorageError("failed to import comment", err)
	}
	return nil
}

// Close drains the connection pool, letting in-flight queries finish.
func (s *PGStore) Close() {
	s.pool.Close()
}
