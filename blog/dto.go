// DTO structures for the blog HTTP surface.
package blog

// CreatePostRequest is the payload for POST /blogpost.
type CreatePostRequest struct {
	Title   string   `json:"title" example:"My first post"`
	Content string   `json:"content" example:"<p>Hello</p>"`
	Tags    []string `json:"tags"`
}

// CreatePostResponse reports the filename assigned to a new post.
type CreatePostResponse struct {
	Message string `json:"message"`
	File    string `json:"file"`
}

// DeletePostResponse reports a successful deletion.
type DeletePostResponse struct {
	Message string `json:"message"`
	File    string `json:"file"`
}

// AddCommentRequest is the payload for POST /comments/{postFilename}.
type AddCommentRequest struct {
	Username string `json:"username" example:"Anonym"`
	Text     string `json:"text" example:"Nice post!"`
}

// AddCommentResponse wraps a newly stored comment.
type AddCommentResponse struct {
	Comment *Comment `json:"comment"`
}

// DeleteCommentResponse wraps a removed comment.
type DeleteCommentResponse struct {
	DeletedComment *Comment `json:"deletedComment"`
}
