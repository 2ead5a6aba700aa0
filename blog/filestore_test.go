package blog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreCreateAndGetPost(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, "Hello World", "<p>hi</p>", []string{"go", "blog"}, "admin")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(post.Filename, "-hello-world"))
	assert.True(t, post.Published)
	assert.Zero(t, post.Views)

	got, err := store.GetPost(ctx, post.Filename)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got.Title)
	assert.Equal(t, "<p>hi</p>", got.Content)
	assert.Equal(t, []string{"go", "blog"}, got.Tags)
	assert.Equal(t, "admin", got.Author)
}

func TestFileStoreGetPostNotFound(t *testing.T) {
	store, _ := newTestFileStore(t)
	_, err := store.GetPost(context.Background(), "2024-01-01-missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestFileStoreDuplicateFilenameRejected(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	_, err := store.CreatePost(ctx, "Same Title", "first", nil, "admin")
	require.NoError(t, err)

	// Same title on the same date collides and must be rejected, not
	// silently overwritten.
	_, err = store.CreatePost(ctx, "Same Title", "second", nil, "admin")
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	post, err := store.GetPost(ctx, GenerateFilename(time.Now().UTC(), "Same Title"))
	require.NoError(t, err)
	assert.Equal(t, "first", post.Content)
}

func TestFileStoreRejectsUnusableTitle(t *testing.T) {
	store, _ := newTestFileStore(t)
	_, err := store.CreatePost(context.Background(), "!!!", "content", nil, "admin")
	assert.True(t, apperror.IsValidationError(err))
}

func TestFileStoreListPostsNewestFirst(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	first, err := store.CreatePost(ctx, "Oldest", "c", nil, "admin")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.CreatePost(ctx, "Newest", "c", nil, "admin")
	require.NoError(t, err)

	summaries, err := store.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.Filename, summaries[0].Filename)
	assert.Equal(t, first.Filename, summaries[1].Filename)

	// Summaries carry no content field at all; spot-check the rest.
	assert.Equal(t, "Newest", summaries[0].Title)
	assert.True(t, summaries[0].Published)
}

func TestFileStoreDeletePostCascadesAndBacksUp(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, "Doomed", "content", nil, "admin")
	require.NoError(t, err)
	_, err = store.AddComment(ctx, post.Filename, "alice", "so long", "")
	require.NoError(t, err)

	deleted, err := store.DeletePost(ctx, post.Filename, "admin")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Gone from the listing.
	summaries, err := store.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	// Comments are unretrievable after the cascade.
	comments, err := store.ListComments(ctx, post.Filename)
	require.NoError(t, err)
	assert.Empty(t, comments)

	// A backup snapshot with the original content exists.
	entries, err := os.ReadDir(filepath.Join(dir, "deleted"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, "deleted", entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content"`)
	assert.Contains(t, string(data), "Doomed")
	assert.Contains(t, string(data), `"deleted_by": "admin"`)
}

func TestFileStoreDeleteMissingPostIsNoOp(t *testing.T) {
	store, _ := newTestFileStore(t)
	deleted, err := store.DeletePost(context.Background(), "2024-01-01-nope", "admin")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFileStoreConcurrentIncrementView(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, "Popular", "content", nil, "admin")
	require.NoError(t, err)

	const viewers = 100
	var wg sync.WaitGroup
	wg.Add(viewers)
	for i := 0; i < viewers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementView(ctx, post.Filename, ViewMeta{ViewedAt: time.Now()}))
		}()
	}
	wg.Wait()

	got, err := store.GetPost(ctx, post.Filename)
	require.NoError(t, err)
	assert.Equal(t, int64(viewers), got.Views)
}

func TestFileStoreIncrementViewUnknownPost(t *testing.T) {
	store, _ := newTestFileStore(t)
	err := store.IncrementView(context.Background(), "2024-01-01-ghost", ViewMeta{})
	assert.True(t, apperror.IsNotFound(err))
}

func TestFileStoreComments(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, "Discussed", "content", nil, "admin")
	require.NoError(t, err)

	first, err := store.AddComment(ctx, post.Filename, "", "first!", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Anonym", first.Username)
	assert.NotEmpty(t, first.ID)

	time.Sleep(5 * time.Millisecond)
	second, err := store.AddComment(ctx, post.Filename, "bob", "<script>x</script>", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotContains(t, second.Text, "<script>")

	comments, err := store.ListComments(ctx, post.Filename)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	// Oldest first.
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
}

func TestFileStoreAddCommentUnknownPost(t *testing.T) {
	store, _ := newTestFileStore(t)
	_, err := store.AddComment(context.Background(), "2024-01-01-ghost", "bob", "hi", "")
	assert.True(t, apperror.IsNotFound(err))
}

func TestFileStoreDeleteComment(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, "Moderated", "content", nil, "admin")
	require.NoError(t, err)
	comment, err := store.AddComment(ctx, post.Filename, "troll", "spam", "")
	require.NoError(t, err)

	deleted, err := store.DeleteComment(ctx, post.Filename, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.ID, deleted.ID)

	comments, err := store.ListComments(ctx, post.Filename)
	require.NoError(t, err)
	assert.Empty(t, comments)

	// Both keys must match.
	_, err = store.DeleteComment(ctx, post.Filename, comment.ID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = store.DeleteComment(ctx, "2024-01-01-other", comment.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFileStoreImportPreservesRecords(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	created := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	post := &Post{
		Filename:  "2020-06-01-old-post",
		Title:     "Old Post",
		Content:   "migrated content",
		Tags:      []string{"history"},
		Author:    "admin",
		Views:     42,
		Published: true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, store.ImportPost(ctx, post))

	got, err := store.GetPost(ctx, post.Filename)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Views)
	assert.True(t, got.CreatedAt.Equal(created))

	// A second import of the same filename is a conflict.
	err = store.ImportPost(ctx, post)
	assert.True(t, apperror.IsConflict(err))

	comment := &Comment{ID: "c-1", PostFilename: post.Filename, Username: "bob", Text: "old", CreatedAt: created}
	require.NoError(t, store.ImportComment(ctx, comment))
	err = store.ImportComment(ctx, comment)
	assert.True(t, apperror.IsConflict(err))
}
