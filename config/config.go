// Package config loads and validates application configuration from
// environment variables. All problems found during loading are collected and
// reported together as a single error, so a misconfigured deployment fails
// fast with the complete list instead of one variable at a time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selects which persistence implementation the server runs on.
type Backend string

const (
	// BackendFile stores posts and comments as flat JSON files.
	BackendFile Backend = "file"
	// BackendPostgres stores posts and comments in PostgreSQL.
	BackendPostgres Backend = "postgres"
)

// DatabaseConfig holds connection settings for the PostgreSQL backend.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	PoolSize int
	// AcquireTimeout bounds how long a request waits for a pool connection
	// before failing with a resource-exhaustion error.
	AcquireTimeout time.Duration
	MigrationsDir  string
}

// AuthConfig holds the admin identity and token settings.
type AuthConfig struct {
	AdminUsername string
	// AdminPasswordHash is a bcrypt hash. Plaintext passwords are never
	// configured or compared.
	AdminPasswordHash string
	// JWTSecret, when set, overrides the persisted secret file.
	JWTSecret string
	// SecretFile is where a generated signing secret is persisted so tokens
	// survive process restarts.
	SecretFile    string
	TokenDuration time.Duration
	// RefreshWindow is the remaining validity below which Refresh issues a
	// new token.
	RefreshWindow time.Duration
	// CookieName is the fallback token transport when no Authorization
	// header is present.
	CookieName string
}

// StorageConfig holds backend selection and file-backend paths.
type StorageConfig struct {
	Backend Backend
	// DataDir is the root of the flat-file store (posts/, comments/, deleted/).
	DataDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	MaxBodyBytes int64
}

// AppConfig is the top-level configuration for the application.
type AppConfig struct {
	Storage *StorageConfig
	DB      *DatabaseConfig
	Auth    *AuthConfig
	Server  *ServerConfig
}

func getRequiredEnv(key string, errs *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errs = append(*errs, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

func getOptionalEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getOptionalEnvInt(key string, defaultValue int, errs *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got %q: %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

func getOptionalEnvInt64(key string, defaultValue int64, errs *[]string) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got %q: %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

func getOptionalEnvDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected duration string, got %q: %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the connection pool within sane bounds.
func clampPoolSize(size int, errs *[]string) int {
	if size < 1 {
		*errs = append(*errs, fmt.Sprintf("DB_POOL_SIZE (%d) is less than 1, clamping to 1", size))
		return 1
	}
	if size > 100 {
		*errs = append(*errs, fmt.Sprintf("DB_POOL_SIZE (%d) is greater than 100, clamping to 100", size))
		return 100
	}
	return size
}

// LoadConfig reads the environment and returns a validated AppConfig.
// needsDB forces the database section to be required even when the file
// backend is selected; the migrate command uses this since the relational
// store is always its target.
func LoadConfig(needsDB bool) (*AppConfig, error) {
	var errs []string

	backend := Backend(getOptionalEnv("STORAGE_BACKEND", string(BackendFile)))
	if backend != BackendFile && backend != BackendPostgres {
		errs = append(errs, fmt.Sprintf("invalid STORAGE_BACKEND %q: must be %q or %q", backend, BackendFile, BackendPostgres))
	}

	storage := &StorageConfig{
		Backend: backend,
		DataDir: getOptionalEnv("DATA_DIR", "./data"),
	}

	var dbConfig *DatabaseConfig
	if backend == BackendPostgres || needsDB {
		dbConfig = &DatabaseConfig{
			Host:           getOptionalEnv("DB_HOST", "localhost"),
			Port:           getOptionalEnvInt("DB_PORT", 5432, &errs),
			User:           getRequiredEnv("DB_USER", &errs),
			Password:       getRequiredEnv("DB_PASSWORD", &errs),
			DBName:         getRequiredEnv("DB_NAME", &errs),
			PoolSize:       clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errs), &errs),
			AcquireTimeout: getOptionalEnvDuration("DB_ACQUIRE_TIMEOUT", 5*time.Second, &errs),
			MigrationsDir:  getOptionalEnv("MIGRATIONS_DIR", "./migrations"),
		}
	}

	authConfig := &AuthConfig{
		AdminUsername:     getRequiredEnv("ADMIN_USERNAME", &errs),
		AdminPasswordHash: getRequiredEnv("ADMIN_PASSWORD_HASH", &errs),
		JWTSecret:         getOptionalEnv("JWT_SECRET", ""),
		SecretFile:        getOptionalEnv("SECRET_FILE", "./.blogserv-secret"),
		TokenDuration:     getOptionalEnvDuration("TOKEN_DURATION", 24*time.Hour, &errs),
		RefreshWindow:     getOptionalEnvDuration("TOKEN_REFRESH_WINDOW", time.Hour, &errs),
		CookieName:        getOptionalEnv("TOKEN_COOKIE_NAME", "blog_token"),
	}

	serverConfig := &ServerConfig{
		Port:         getOptionalEnv("PORT", "8080"),
		MaxBodyBytes: getOptionalEnvInt64("MAX_BODY_BYTES", 1<<20, &errs),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return &AppConfig{
		Storage: storage,
		DB:      dbConfig,
		Auth:    authConfig,
		Server:  serverConfig,
	}, nil
}
