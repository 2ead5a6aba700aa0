// Package auth implements the admin session subsystem: signed session
// tokens (issue, verify, refresh, extraction from requests), the credential
// validator for the single configured admin identity, and the HTTP
// middleware that gates protected routes.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blogserv-go/apperror"
	"github.com/user/blogserv-go/config"
)

const (
	tokenIssuer   = "blogserv"
	tokenAudience = "blogserv-admin"
	// adminID is the subject id of the single configured identity.
	adminID = 1
)

// Claims is the JWT payload for an admin session token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies session tokens and validates admin credentials.
// Token validity is purely cryptographic and time based; no session state is
// held server side.
type Service struct {
	cfg    config.AuthConfig
	secret []byte
	logger *zap.Logger
	// now is swappable for expiry tests.
	now func() time.Time
}

// NewService builds a Service. The signing secret comes from JWT_SECRET when
// one of sufficient length is configured; otherwise it is loaded from (or
// generated into) the configured secret file.
func NewService(cfg config.AuthConfig, logger *zap.Logger) (*Service, error) {
	var secret []byte
	if len(cfg.JWTSecret) >= minSecretLen {
		secret = []byte(cfg.JWTSecret)
	} else {
		if cfg.JWTSecret != "" {
			logger.Warn("configured JWT_SECRET is too short, falling back to persisted secret",
				zap.Int("min_bytes", minSecretLen))
		}
		var err error
		secret, err = LoadOrCreateSecret(cfg.SecretFile)
		if err != nil {
			return nil, apperror.NewConfigError("failed to initialize signing secret", err)
		}
	}
	return &Service{
		cfg:    cfg,
		secret: secret,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Issue produces a signed token for the identity with a fixed validity
// window from now.
func (s *Service) Issue(identity *Identity) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(identity.ID),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperror.NewInternalError("failed to sign token", err)
	}
	return signed, nil
}

// Verify validates a token's signature, algorithm, issuer, audience and
// expiry, returning the identity it carries. Any failure yields an
// UnauthorizedError; the reason is logged but never includes the secret or
// the raw token.
func (s *Service) Verify(tokenString string) (*Identity, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		s.logger.Info("token rejected", zap.String("reason", err.Error()))
		return nil, apperror.NewUnauthorizedError("invalid or expired token", err)
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		s.logger.Info("token rejected", zap.String("reason", "non-numeric subject"))
		return nil, apperror.NewUnauthorizedError("invalid or expired token", err)
	}
	return &Identity{ID: id, Username: claims.Username, Role: claims.Role}, nil
}

// Refresh returns a replacement token with a fresh expiry when the given
// token has less than the refresh window remaining; otherwise the same token
// string is returned unchanged. An invalid or expired token cannot be
// refreshed.
func (s *Service) Refresh(tokenString string) (string, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		s.logger.Info("refresh rejected", zap.String("reason", err.Error()))
		return "", apperror.NewUnauthorizedError("invalid or expired token", err)
	}
	if claims.ExpiresAt.Time.Sub(s.now()) >= s.cfg.RefreshWindow {
		return tokenString, nil
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return "", apperror.NewUnauthorizedError("invalid or expired token", err)
	}
	return s.Issue(&Identity{ID: id, Username: claims.Username, Role: claims.Role})
}

// Extract pulls the token from the Authorization header, falling back to the
// configured cookie. No other source is honored.
func (s *Service) Extract(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], true
		}
	}
	if cookie, err := r.Cookie(s.cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// CookieName exposes the configured cookie name for handlers setting or
// clearing the session cookie.
func (s *Service) CookieName() string {
	return s.cfg.CookieName
}

// TokenDuration exposes the configured validity window.
func (s *Service) TokenDuration() time.Duration {
	return s.cfg.TokenDuration
}

// ValidateCredentials checks a username/password pair against the configured
// admin identity. It returns nil on any mismatch and never distinguishes a
// bad username from a bad password. The bcrypt comparison runs even when the
// username is wrong so that response timing does not reveal whether the
// username exists.
func (s *Service) ValidateCredentials(username, password string) *Identity {
	err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password))
	if username != s.cfg.AdminUsername || err != nil {
		return nil
	}
	return &Identity{ID: adminID, Username: s.cfg.AdminUsername, Role: RoleAdmin}
}

func (s *Service) parseClaims(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.Role == "" || claims.Username == "" {
		return nil, errors.New("token is missing identity claims")
	}
	return claims, nil
}
