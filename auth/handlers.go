package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
)

// Handlers exposes the auth HTTP surface: login, verify, logout, refresh.
type Handlers struct {
	service *Service
	logger  *zap.Logger
}

// NewHandlers creates the auth handlers.
func NewHandlers(service *Service, logger *zap.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// HandleLogin godoc
// @Summary Admin login
// @Description Validates admin credentials and issues a session token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "Admin credentials"
// @Success 200 {object} auth.LoginResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, apperror.NewBadRequestError("invalid request body", err))
			return
		}
		if req.Username == "" || req.Password == "" {
			WriteError(w, apperror.NewValidationError("username and password are required", nil))
			return
		}

		identity := h.service.ValidateCredentials(req.Username, req.Password)
		if identity == nil {
			// Do not reveal which of the two fields was wrong.
			WriteError(w, apperror.NewAuthError("invalid credentials", nil))
			return
		}

		token, err := h.service.Issue(identity)
		if err != nil {
			h.logger.Error("failed to issue token", zap.Error(err))
			WriteError(w, err)
			return
		}

		h.setSessionCookie(w, token)
		h.logger.Info("admin logged in", zap.String("username", identity.Username))
		WriteJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, User: identity})
	}
}

// HandleVerify godoc
// @Summary Verify session token
// @Description Verifies the token from the Authorization header or cookie.
// @Tags Auth
// @Produce json
// @Success 200 {object} auth.VerifyResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Router /auth/verify [post]
func (h *Handlers) HandleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := h.service.Extract(r)
		if !ok {
			WriteError(w, apperror.NewAuthError("token required", nil))
			return
		}
		identity, err := h.service.Verify(tokenString)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, VerifyResponse{Valid: true, User: identity})
	}
}

// HandleLogout godoc
// @Summary Logout
// @Description Clears the session cookie. No server-side state changes; an
// already issued token remains valid until its natural expiry.
// @Tags Auth
// @Produce json
// @Success 200 {object} auth.LogoutResponse
// @Router /auth/logout [post]
func (h *Handlers) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     h.service.CookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		WriteJSON(w, http.StatusOK, LogoutResponse{Success: true, Message: "logged out"})
	}
}

// HandleRefresh godoc
// @Summary Refresh session token
// @Description Returns a token with a fresh expiry when the current one has
// less than the refresh window remaining; otherwise returns it unchanged.
// @Tags Auth
// @Produce json
// @Success 200 {object} auth.RefreshResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Router /auth/refresh [post]
func (h *Handlers) HandleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := h.service.Extract(r)
		if !ok {
			WriteError(w, apperror.NewAuthError("token required", nil))
			return
		}
		refreshed, err := h.service.Refresh(tokenString)
		if err != nil {
			WriteError(w, err)
			return
		}
		if refreshed != tokenString {
			h.setSessionCookie(w, refreshed)
		}
		WriteJSON(w, http.StatusOK, RefreshResponse{Token: refreshed})
	}
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.service.TokenDuration()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// WriteJSON serializes data to the response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// WriteError writes a standardized JSON error body. Errors that are not
// AppErrors are wrapped as internal errors with a generic message so no
// internal detail reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}
	WriteJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
