// Package migration copies all records from one persistence backend into
// another, idempotently. It is a pure Store-to-Store transform: connectivity
// and schema concerns belong to the caller, which must not invoke the copy
// until both are established.
package migration

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
	"github.com/user/blogserv-go/blog"
)

// Report counts the outcome per entity type. A non-zero failure count does
// not fail the run; failed records are logged and the loop continues.
type Report struct {
	PostsMigrated    int `json:"posts_migrated"`
	PostsSkipped     int `json:"posts_skipped"`
	PostsFailed      int `json:"posts_failed"`
	CommentsMigrated int `json:"comments_migrated"`
	CommentsSkipped  int `json:"comments_skipped"`
	CommentsFailed   int `json:"comments_failed"`
}

// Runner copies posts and comments from src to dst.
type Runner struct {
	src    blog.Store
	dst    blog.Store
	logger *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(src, dst blog.Store, logger *zap.Logger) *Runner {
	return &Runner{src: src, dst: dst, logger: logger}
}

// Run enumerates every source post and copies it, then its comments, into
// the destination. Records already present in the destination are skipped
// (posts by filename, comments by id), so re-running against the same source
// creates nothing new. Only a failure to enumerate the source aborts the
// run; any per-record failure is isolated.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	summaries, err := r.src.ListPosts(ctx)
	if err != nil {
		return nil, apperror.NewMigrationError("failed to enumerate source posts", err)
	}

	report := &Report{}
	for _, summary := range summaries {
		r.migratePost(ctx, summary.Filename, report)
	}

	r.logger.Info("migration finished",
		zap.Int("posts_migrated", report.PostsMigrated),
		zap.Int("posts_skipped", report.PostsSkipped),
		zap.Int("posts_failed", report.PostsFailed),
		zap.Int("comments_migrated", report.CommentsMigrated),
		zap.Int("comments_skipped", report.CommentsSkipped),
		zap.Int("comments_failed", report.CommentsFailed))
	return report, nil
}

func (r *Runner) migratePost(ctx context.Context, filename string, report *Report) {
	if _, err := r.dst.GetPost(ctx, filename); err == nil {
		report.PostsSkipped++
		// The post itself exists; its comments may still be missing from an
		// earlier partial run.
		r.migrateComments(ctx, filename, report)
		return
	} else if !apperror.IsNotFound(err) {
		r.logger.Error("failed to probe destination for post", zap.String("filename", filename), zap.Error(err))
		report.PostsFailed++
		return
	}

	post, err := r.src.GetPost(ctx, filename)
	if err != nil {
		r.logger.Error("failed to read source post", zap.String("filename", filename), zap.Error(err))
		report.PostsFailed++
		return
	}
	if err := r.dst.ImportPost(ctx, post); err != nil {
		if apperror.IsConflict(err) {
			report.PostsSkipped++
		} else {
			r.logger.Error("failed to import post", zap.String("filename", filename), zap.Error(err))
			report.PostsFailed++
			return
		}
	} else {
		report.PostsMigrated++
	}

	r.migrateComments(ctx, filename, report)
}

func (r *Runner) migrateComments(ctx context.Context, filename string, report *Report) {
	srcComments, err := r.src.ListComments(ctx, filename)
	if err != nil {
		r.logger.Error("failed to read source comments", zap.String("filename", filename), zap.Error(err))
		report.CommentsFailed++
		return
	}
	if len(srcComments) == 0 {
		return
	}

	dstComments, err := r.dst.ListComments(ctx, filename)
	if err != nil {
		r.logger.Error("failed to probe destination comments", zap.String("filename", filename), zap.Error(err))
		report.CommentsFailed += len(srcComments)
		return
	}
	existing := make(map[string]struct{}, len(dstComments))
	for _, c := range dstComments {
		existing[c.ID] = struct{}{}
	}

	for i := range srcComments {
		comment := srcComments[i]
		if _, ok := existing[comment.ID]; ok {
			report.CommentsSkipped++
			continue
		}
		if err := r.dst.ImportComment(ctx, &comment); err != nil {
			if apperror.IsConflict(err) {
				report.CommentsSkipped++
				continue
			}
			r.logger.Error("failed to import comment",
				zap.String("filename", filename),
				zap.String("comment_id", comment.ID),
				zap.Error(err))
			report.CommentsFailed++
			continue
		}
		report.CommentsMigrated++
	}
}
