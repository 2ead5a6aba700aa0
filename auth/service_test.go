package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blogserv-go/config"
)

const testPassword = "correct horse battery staple"

func testConfig(t *testing.T) config.AuthConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return config.AuthConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		SecretFile:        filepath.Join(t.TempDir(), "secret"),
		TokenDuration:     24 * time.Hour,
		RefreshWindow:     time.Hour,
		CookieName:        "blog_token",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t)

	identity := &Identity{ID: 1, Username: "admin", Role: RoleAdmin}
	token, err := svc.Issue(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.Username, got.Username)
	assert.Equal(t, identity.Role, got.Role)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	_, err = svc.Verify(token + "x")
	assert.Error(t, err)
}

func TestVerifyRejectsTokenFromOtherSecret(t *testing.T) {
	svc := newTestService(t)
	other := newTestService(t)

	token, err := other.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	svc := newTestService(t)

	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.Verify(bad)
		assert.Error(t, err, "input %q should be rejected", bad)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	// A token whose expiry has passed fails even though the signature is
	// still valid.
	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestRefreshFarFromExpiryReturnsSameToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(token)
	require.NoError(t, err)
	assert.Equal(t, token, refreshed)
}

func TestRefreshNearExpiryIssuesNewToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	// 23.5 hours later there is less than the one-hour window left.
	svc.now = func() time.Time { return time.Now().Add(23*time.Hour + 30*time.Minute) }

	refreshed, err := svc.Refresh(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, refreshed)

	got, err := svc.Verify(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, 1, got.ID)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = svc.Refresh(token)
	assert.Error(t, err)
}

func TestTokenSurvivesServiceRestart(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewService(cfg, zap.NewNop())
	require.NoError(t, err)

	token, err := svc.Issue(&Identity{ID: 1, Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	// A new service over the same secret file must accept the old token.
	restarted, err := NewService(cfg, zap.NewNop())
	require.NoError(t, err)
	got, err := restarted.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
}

func TestValidateCredentials(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid pair", "admin", testPassword, true},
		{"wrong password", "admin", "wrong", false},
		{"wrong username", "root", testPassword, false},
		{"username case mismatch", "Admin", testPassword, false},
		{"both wrong", "root", "wrong", false},
		{"empty pair", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := svc.ValidateCredentials(tt.username, tt.password)
			if tt.want {
				require.NotNil(t, identity)
				assert.Equal(t, "admin", identity.Username)
				assert.Equal(t, RoleAdmin, identity.Role)
			} else {
				assert.Nil(t, identity)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	svc := newTestService(t)

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
		r.Header.Set("Authorization", "Bearer abc123")
		token, ok := svc.Extract(r)
		require.True(t, ok)
		assert.Equal(t, "abc123", token)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
		r.AddCookie(&http.Cookie{Name: "blog_token", Value: "cookietoken"})
		token, ok := svc.Extract(r)
		require.True(t, ok)
		assert.Equal(t, "cookietoken", token)
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
		r.Header.Set("Authorization", "Bearer fromheader")
		r.AddCookie(&http.Cookie{Name: "blog_token", Value: "fromcookie"})
		token, ok := svc.Extract(r)
		require.True(t, ok)
		assert.Equal(t, "fromheader", token)
	})

	t.Run("absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
		_, ok := svc.Extract(r)
		assert.False(t, ok)
	})

	t.Run("malformed header ignored", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
		r.Header.Set("Authorization", "Basic abc123")
		_, ok := svc.Extract(r)
		assert.False(t, ok)
	})
}
