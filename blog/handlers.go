package blog

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
	"github.com/user/blogserv-go/auth"
)

// Handlers exposes the post and comment HTTP surface over a Store.
type Handlers struct {
	store  Store
	logger *zap.Logger
}

// NewHandlers creates the blog handlers.
func NewHandlers(store Store, logger *zap.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// HandleCreatePost godoc
// @Summary Create a blog post
// @Tags Posts
// @Accept json
// @Produce json
// @Param postBody body blog.CreatePostRequest true "Post fields"
// @Success 201 {object} blog.CreatePostResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /blogpost [post]
func (h *Handlers) HandleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, apperror.NewBadRequestError("invalid request body", err))
			return
		}
		if req.Title == "" || req.Content == "" {
			auth.WriteError(w, apperror.NewValidationError("title and content are required", nil))
			return
		}

		author := ""
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			author = identity.Username
		}

		post, err := h.store.CreatePost(r.Context(), req.Title, req.Content, req.Tags, author)
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		h.logger.Info("post created", zap.String("filename", post.Filename), zap.String("author", author))
		auth.WriteJSON(w, http.StatusCreated, CreatePostResponse{Message: "post created", File: post.Filename})
	}
}

// HandleGetPost godoc
// @Summary Get a blog post
// @Tags Posts
// @Produce json
// @Param filename path string true "Post filename"
// @Success 200 {object} blog.Post
// @Failure 404 {object} apperror.ErrorResponse
// @Router /blogpost/{filename} [get]
func (h *Handlers) HandleGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		post, err := h.store.GetPost(r.Context(), filename)
		if err != nil {
			auth.WriteError(w, err)
			return
		}

		// A fetched post is a viewed post. The counter lives in the store so
		// it survives restarts and stays correct under concurrent reads.
		meta := ViewMeta{
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
			ViewedAt:  time.Now().UTC(),
		}
		if err := h.store.IncrementView(r.Context(), filename, meta); err != nil {
			h.logger.Warn("failed to record view", zap.String("filename", filename), zap.Error(err))
		} else {
			post.Views++
		}

		auth.WriteJSON(w, http.StatusOK, post)
	}
}

// HandleListPosts godoc
// @Summary List post summaries, newest first
// @Tags Posts
// @Produce json
// @Success 200 {array} blog.PostSummary
// @Router /blogposts [get]
func (h *Handlers) HandleListPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := h.store.ListPosts(r.Context())
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, summaries)
	}
}

// HandleDeletePost godoc
// @Summary Delete a blog post and its comments
// @Tags Posts
// @Produce json
// @Param filename path string true "Post filename"
// @Success 200 {object} blog.DeletePostResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /blogpost/{filename} [delete]
func (h *Handlers) HandleDeletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")

		deletedBy := ""
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			deletedBy = identity.Username
		}

		deleted, err := h.store.DeletePost(r.Context(), filename, deletedBy)
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		if !deleted {
			auth.WriteError(w, apperror.NewNotFoundError("post not found", nil))
			return
		}
		auth.WriteJSON(w, http.StatusOK, DeletePostResponse{Message: "post deleted", File: filename})
	}
}

// HandleListComments godoc
// @Summary List a post's comments, oldest first
// @Tags Comments
// @Produce json
// @Param postFilename path string true "Post filename"
// @Success 200 {array} blog.Comment
// @Router /comments/{postFilename} [get]
func (h *Handlers) HandleListComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comments, err := h.store.ListComments(r.Context(), chi.URLParam(r, "postFilename"))
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, comments)
	}
}

// HandleAddComment godoc
// @Summary Submit a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param postFilename path string true "Post filename"
// @Param commentBody body blog.AddCommentRequest true "Comment fields"
// @Success 201 {object} blog.AddCommentResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /comments/{postFilename} [post]
func (h *Handlers) HandleAddComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		comment, err := h.store.AddComment(r.Context(), chi.URLParam(r, "postFilename"),
			req.Username, req.Text, r.RemoteAddr)
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		auth.WriteJSON(w, http.StatusCreated, AddCommentResponse{Comment: comment})
	}
}

// HandleDeleteComment godoc
// @Summary Delete a comment
// @Tags Comments
// @Produce json
// @Param postFilename path string true "Post filename"
// @Param commentId path string true "Comment id"
// @Success 200 {object} blog.DeleteCommentResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /comments/{postFilename}/{commentId} [delete]
func (h *Handlers) HandleDeleteComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comment, err := h.store.DeleteComment(r.Context(),
			chi.URLParam(r, "postFilename"), chi.URLParam(r, "commentId"))
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, DeleteCommentResponse{DeletedComment: comment})
	}
}
