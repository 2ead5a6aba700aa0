package auth

import (
	"net/http"

	"github.com/user/blogserv-go/apperror"
)

// Authenticate gates a route behind token verification. A request with no
// token at all is rejected with 401; a token that fails verification with
// 403. On success the resolved identity is attached to the request context
// for downstream handlers.
func Authenticate(svc *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := svc.Extract(r)
			if !ok {
				WriteError(w, apperror.NewAuthError("token required", nil))
				return
			}
			identity, err := svc.Verify(tokenString)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContextWithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin rejects any request whose context identity does not carry the
// admin role. It must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			WriteError(w, apperror.NewAuthError("token required", nil))
			return
		}
		if !identity.IsAdmin() {
			WriteError(w, apperror.NewUnauthorizedError("admin role required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
