package blog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
)

// FileStore is the flat-file backend. Each post, its comment list and each
// deletion backup live in their own JSON file under the data directory.
// Whole-file read/write with no cross-process locking is acceptable here
// because posts are effectively append-only and only one admin exists; the
// per-filename mutex below exists so concurrent view increments within this
// process never lose updates.
type FileStore struct {
	dataDir string
	logger  *zap.Logger

	// locks serializes read-modify-write cycles per post filename.
	locks sync.Map // string -> *sync.Mutex

	viewLogMu sync.Mutex
}

// NewFileStore creates the data directory layout and returns a FileStore.
func NewFileStore(dataDir string, logger *zap.Logger) (*FileStore, error) {
	for _, sub := range []string{"posts", "comments", "deleted"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o750); err != nil {
			return nil, apperror.NewStorageError("failed to create data directory", err)
		}
	}
	return &FileStore{dataDir: dataDir, logger: logger}, nil
}

func (s *FileStore) lock(filename string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(filename, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// validFilename rejects anything that could escape the data directory.
func validFilename(filename string) bool {
	return filename != "" &&
		!strings.ContainsAny(filename, `/\`) &&
		!strings.Contains(filename, "..")
}

func (s *FileStore) postPath(filename string) string {
	return filepath.Join(s.dataDir, "posts", filename+".json")
}

func (s *FileStore) commentsPath(filename string) string {
	return filepath.Join(s.dataDir, "comments", filename+".json")
}

// CreatePost generates the filename from the current date and title and
// persists the post. An existing file with the same name is a conflict, not
// an overwrite.
func (s *FileStore) CreatePost(ctx context.Context, title, content string, tags []string, author string) (*Post, error) {
	now := time.Now().UTC()
	filename := GenerateFilename(now, title)
	if strings.HasSuffix(filename, "-") {
		// An empty slug means the title had no usable characters at all.
		return nil, apperror.NewValidationError("title contains no usable characters", nil)
	}

	mu := s.lock(filename)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.postPath(filename)); err == nil {
		return nil, apperror.NewConflictError(fmt.Sprintf("a post named %q already exists", filename), nil)
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
	if err := s.writePost(post); err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost reads a single post.
func (s *FileStore) GetPost(ctx context.Context, filename string) (*Post, error) {
	if !validFilename(filename) {
		return nil, apperror.NewNotFoundError("post not found", nil)
	}
	return s.readPost(filename)
}

// ListPosts walks the posts directory and returns summaries newest first.
func (s *FileStore) ListPosts(ctx context.Context) ([]PostSummary, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "posts"))
	if err != nil {
		return nil, apperror.NewStorageError("failed to list posts", err)
	}

	summaries := make([]PostSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		post, err := s.readPost(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// A single unreadable file should not hide the whole listing.
			s.logger.Warn("skipping unreadable post file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		summaries = append(summaries, post.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// DeletePost snapshots the post to the deleted directory, then removes the
// post and its comment file. A missing post is a no-op result, not an error.
func (s *FileStore) DeletePost(ctx context.Context, filename, deletedBy string) (bool, error) {
	if !validFilename(filename) {
		return false, nil
	}
	mu := s.lock(filename)
	mu.Lock()
	defer mu.Unlock()

	post, err := s.readPost(filename)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	backup := DeletedPost{
		Post:      *post,
		DeletedBy: deletedBy,
		DeletedAt: time.Now().UTC(),
	}
	backupName := fmt.Sprintf("%s.%d.json", filename, backup.DeletedAt.UnixNano())
	if err := writeJSONFile(filepath.Join(s.dataDir, "deleted", backupName), backup); err != nil {
		// The backup must exist before the live record goes away.
		return false, apperror.NewStorageError("failed to write deletion backup", err)
	}

	if err := os.Remove(s.postPath(filename)); err != nil {
		return false, apperror.NewStorageError("failed to delete post", err)
	}
	// Cascade: the comment file goes with the post.
	if err := os.Remove(s.commentsPath(filename)); err != nil && !os.IsNotExist(err) {
		return false, apperror.NewStorageError("failed to delete post comments", err)
	}

	s.logger.Info("post deleted",
		zap.String("filename", filename),
		zap.String("deleted_by", deletedBy))
	return true, nil
}

// IncrementView bumps the post's view counter under the per-filename lock
// and appends the analytics event to the view log.
func (s *FileStore) IncrementView(ctx context.Context, filename string, meta ViewMeta) error {
	if !validFilename(filename) {
		return apperror.NewNotFoundError("post not found", nil)
	}
	mu := s.lock(filename)
	mu.Lock()
	defer mu.Unlock()

	post, err := s.readPost(filename)
	if err != nil {
		return err
	}
	post.Views++
	if err := s.writePost(post); err != nil {
		return err
	}

	s.appendViewEvent(filename, meta)
	return nil
}

// appendViewEvent records the analytics event as a JSON line. Failures are
// logged but never fail the increment: the counter is the authoritative
// datum, the event log is best-effort.
func (s *FileStore) appendViewEvent(filename string, meta ViewMeta) {
	s.viewLogMu.Lock()
	defer s.viewLogMu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dataDir, "views.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		s.logger.Warn("failed to open view log", zap.Error(err))
		return
	}
	defer f.Close()

	event := struct {
		Filename string `json:"filename"`
		ViewMeta
	}{Filename: filename, ViewMeta: meta}
	if err := json.NewEncoder(f).Encode(event); err != nil {
		s.logger.Warn("failed to append view event", zap.Error(err))
	}
}

// AddComment validates and escapes the input, then appends the comment to
// the post's comment file.
func (s *FileStore) AddComment(ctx context.Context, postFilename, username, text, ip string) (*Comment, error) {
	if !validFilename(postFilename) {
		return nil, apperror.NewNotFoundError("post not found", nil)
	}
	escapedUsername, escapedText, err := sanitizeComment(username, text)
	if err != nil {
		return nil, err
	}

	mu := s.lock(postFilename)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.postPath(postFilename)); err != nil {
		return nil, apperror.NewNotFoundError("post not found", err)
	}

	comments, err := s.readComments(postFilename)
	if err != nil {
		return nil, err
	}

	comment := Comment{
		ID:           uuid.NewString(),
		PostFilename: postFilename,
		Username:     escapedUsername,
		Text:         escapedText,
		IP:           ip,
		CreatedAt:    time.Now().UTC(),
	}
	comments = append(comments, comment)
	if err := s.writeComments(postFilename, comments); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns the post's comments oldest first. A post without a
// comment file yields an empty list.
func (s *FileStore) ListComments(ctx context.Context, postFilename string) ([]Comment, error) {
	if !validFilename(postFilename) {
		return []Comment{}, nil
	}
	comments, err := s.readComments(postFilename)
	if err != nil {
		return nil, err
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// DeleteComment removes the comment matching both keys and returns it.
func (s *FileStore) DeleteComment(ctx context.Context, postFilename, commentID string) (*Comment, error) {
	if !validFilename(postFilename) {
		return nil, apperror.NewNotFoundError("comment not found", nil)
	}
	mu := s.lock(postFilename)
	mu.Lock()
	defer mu.Unlock()

	comments, err := s.readComments(postFilename)
	if err != nil {
		return nil, err
	}
	for i, c := range comments {
		if c.ID == commentID {
			comments = append(comments[:i], comments[i+1:]...)
			if err := s.writeComments(postFilename, comments); err != nil {
				return nil, err
			}
			return &c, nil
		}
	}
	return nil, apperror.NewNotFoundError("comment not found", nil)
}

// ImportPost writes a post verbatim, refusing to overwrite an existing one.
func (s *FileStore) ImportPost(ctx context.Context, post *Post) error {
	if !validFilename(post.Filename) {
		return apperror.NewValidationError("invalid post filename", nil)
	}
	mu := s.lock(post.Filename)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.postPath(post.Filename)); err == nil {
		return apperror.NewConflictError(fmt.Sprintf("a post named %q already exists", post.Filename), nil)
	}
	return s.writePost(post)
}

// ImportComment appends a comment verbatim, refusing a duplicate id.
func (s *FileStore) ImportComment(ctx context.Context, comment *Comment) error {
	if !validFilename(comment.PostFilename) {
		return apperror.NewValidationError("invalid post filename", nil)
	}
	mu := s.lock(comment.PostFilename)
	mu.Lock()
	defer mu.Unlock()

	comments, err := s.readComments(comment.PostFilename)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if c.ID == comment.ID {
			return apperror.NewConflictError("comment already exists", nil)
		}
	}
	return s.writeComments(comment.PostFilename, append(comments, *comment))
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() {}

func (s *FileStore) readPost(filename string) (*Post, error) {
	data, err := os.ReadFile(s.postPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NewNotFoundError("post not found", nil)
		}
		return nil, apperror.NewStorageError("failed to read post", err)
	}
	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, apperror.NewStorageError("failed to decode post", err)
	}
	return &post, nil
}

func (s *FileStore) writePost(post *Post) error {
	if err := writeJSONFile(s.postPath(post.Filename), post); err != nil {
		return apperror.NewStorageError("failed to write post", err)
	}
	return nil
}

func (s *FileStore) readComments(postFilename string) ([]Comment, error) {
	data, err := os.ReadFile(s.commentsPath(postFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return []Comment{}, nil
		}
		return nil, apperror.NewStorageError("failed to read comments", err)
	}
	var comments []Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, apperror.NewStorageError("failed to decode comments", err)
	}
	return comments, nil
}

func (s *FileStore) writeComments(postFilename string, comments []Comment) error {
	if err := writeJSONFile(s.commentsPath(postFilename), comments); err != nil {
		return apperror.NewStorageError("failed to write comments", err)
	}
	return nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}
