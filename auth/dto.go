// DTO structures for the auth HTTP surface.
package auth

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"strongpassword123"`
}

// LoginResponse is returned on successful login. The token is also set as an
// HttpOnly cookie so browser clients need not handle it themselves.
type LoginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    *Identity `json:"user"`
}

// VerifyResponse is returned by POST /auth/verify for a valid token.
type VerifyResponse struct {
	Valid bool      `json:"valid"`
	User  *Identity `json:"user"`
}

// RefreshResponse carries the (possibly unchanged) token after a refresh.
type RefreshResponse struct {
	Token string `json:"token"`
}

// LogoutResponse acknowledges a logout. Logout clears the client's cookie
// only; the server keeps no revocation list, so a previously issued token
// string stays cryptographically valid until its natural expiry.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
