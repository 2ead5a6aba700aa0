package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// minSecretLen is the minimum acceptable signing secret length in bytes.
const minSecretLen = 32

// LoadOrCreateSecret returns the signing secret persisted at path, generating
// and saving a fresh one when the file is missing or its contents are too
// short. Persisting the secret keeps issued tokens valid across restarts.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret, decErr := hex.DecodeString(strings.TrimSpace(string(data)))
		if decErr == nil && len(secret) >= minSecretLen {
			return secret, nil
		}
		// Fall through and regenerate: a short or corrupt secret must not
		// be used for signing.
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read secret file %s: %w", path, err)
	}

	secret := make([]byte, minSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create secret directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(secret)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist signing secret to %s: %w", path, err)
	}
	return secret, nil
}
