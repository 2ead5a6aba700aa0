package blog

import (
	"strings"

	"github.com/user/blogserv-go/apperror"
)

const (
	// maxCommentLen is the maximum accepted comment length in characters.
	maxCommentLen = 1000
	// anonymousName replaces an empty comment username.
	anonymousName = "Anonym"
)

// htmlEscaper neutralizes markup in user-supplied comment fields before they
// are stored. The escape set matches what the API contract guarantees.
var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// sanitizeComment validates and escapes comment input, applying the
// anonymous default for an empty username. Length is counted in runes so a
// multi-byte character is one character.
func sanitizeComment(username, text string) (string, string, error) {
	if strings.TrimSpace(text) == "" {
		return "", "", apperror.NewValidationError("comment text is required", nil)
	}
	if len([]rune(text)) > maxCommentLen {
		return "", "", apperror.NewValidationError("comment text exceeds 1000 characters", nil)
	}
	if username == "" {
		username = anonymousName
	}
	return htmlEscaper.Replace(username), htmlEscaper.Replace(text), nil
}
