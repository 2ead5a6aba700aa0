// Package blog implements the post and comment persistence service: the data
// model, the storage contract, and its two interchangeable backends (flat
// JSON files and PostgreSQL), plus the HTTP handlers over them.
package blog

import "time"

// Post is a blog post. Filename is the primary identity: derived from the
// creation date and sanitized title, unique and immutable once assigned.
type Post struct {
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Author    string    `json:"author"`
	Views     int64     `json:"views"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostSummary is the listing shape of a post: everything but the content.
type PostSummary struct {
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Author    string    `json:"author"`
	Views     int64     `json:"views"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects a post into its listing shape.
func (p *Post) Summary() PostSummary {
	return PostSummary{
		Filename:  p.Filename,
		Title:     p.Title,
		Tags:      p.Tags,
		Author:    p.Author,
		Views:     p.Views,
		Published: p.Published,
		CreatedAt: p.CreatedAt,
	}
}

// Comment belongs to exactly one post, referenced by filename. Username and
// Text are stored HTML-escaped. Comments are created and deleted, never
// updated.
type Comment struct {
	ID           string    `json:"id"`
	PostFilename string    `json:"post_filename"`
	Username     string    `json:"username"`
	Text         string    `json:"text"`
	IP           string    `json:"ip,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeletedPost is the backup snapshot written before a post is removed. It is
// never pruned automatically and exists to make restoration possible.
type DeletedPost struct {
	Post      Post      `json:"post"`
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
	Reason    string    `json:"reason,omitempty"`
}

// ViewMeta is the analytics payload recorded alongside a view-count
// increment.
type ViewMeta struct {
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	ViewedAt  time.Time `json:"viewed_at"`
}
