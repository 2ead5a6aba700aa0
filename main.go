// Command blogserv is the blog server. The root command starts the HTTP
// server on the configured storage backend; the migrate subcommand copies
// the flat-file store into PostgreSQL and exits.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/blogserv-go/apperror"
	"github.com/user/blogserv-go/auth"
	"github.com/user/blogserv-go/blog"
	"github.com/user/blogserv-go/config"
	"github.com/user/blogserv-go/db"
	"github.com/user/blogserv-go/migration"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "blogserv",
		Short:        "Personal blog server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(&cobra.Command{
		Use:          "migrate",
		Short:        "Copy the flat-file store into PostgreSQL and exit",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	})
	return root
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if os.Getenv("LOG_DEBUG") != "" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// newStore builds the persistence backend selected by configuration. For the
// relational backend the schema is ensured before the pool is handed out.
func newStore(cfg *config.AppConfig, logger *zap.Logger) (blog.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if err := db.RunMigrations(cfg.DB); err != nil {
			return nil, err
		}
		pool, err := db.NewPool(cfg.DB)
		if err != nil {
			return nil, err
		}
		return blog.NewPGStore(pool, cfg.DB.AcquireTimeout, logger), nil
	default:
		return blog.NewFileStore(cfg.Storage.DataDir, logger)
	}
}

func runServe() error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env file not found or not readable: %v\n", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	// Missing required configuration is fatal before anything listens.
	cfg, err := config.LoadConfig(false)
	if err != nil {
		return err
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(*cfg.Auth, logger)
	if err != nil {
		store.Close()
		return err
	}
	authHandlers := auth.NewHandlers(authService, logger)
	blogHandlers := blog.NewHandlers(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(maxBodyBytes(cfg.Server.MaxBodyBytes))
	r.Use(jsonPanicRecovery(logger))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandlers.HandleLogin())
		r.Post("/verify", authHandlers.HandleVerify())
		r.Post("/logout", authHandlers.HandleLogout())
		r.Post("/refresh", authHandlers.HandleRefresh())
	})

	// Public read and comment-submission surface.
	r.Get("/blogposts", blogHandlers.HandleListPosts())
	r.Get("/blogpost/{filename}", blogHandlers.HandleGetPost())
	r.Get("/comments/{postFilename}", blogHandlers.HandleListComments())
	r.Post("/comments/{postFilename}", blogHandlers.HandleAddComment())

	// Admin-only mutations: authenticate first, then the role check.
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(authService))
		r.Use(auth.RequireAdmin)
		r.Post("/blogpost", blogHandlers.HandleCreatePost())
		r.Delete("/blogpost/{filename}", blogHandlers.HandleDeletePost())
		r.Delete("/comments/{postFilename}/{commentId}", blogHandlers.HandleDeleteComment())
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("backend", string(cfg.Storage.Backend)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// In-flight queries have finished; drain the backend.
	store.Close()
	logger.Info("server stopped")
	return nil
}

// runMigrate performs the three-phase file-to-relational migration:
// connectivity (fatal), schema (fatal), then the per-record copy.
func runMigrate(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env file not found or not readable: %v\n", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(true)
	if err != nil {
		return err
	}

	src, err := blog.NewFileStore(cfg.Storage.DataDir, logger)
	if err != nil {
		return err
	}

	// Phase 1: connectivity. NewPool pings; failure stops the run.
	pool, err := db.NewPool(cfg.DB)
	if err != nil {
		return err
	}

	// Phase 2: schema. Failure also stops the run.
	if err := db.RunMigrations(cfg.DB); err != nil {
		pool.Close()
		return err
	}

	dst := blog.NewPGStore(pool, cfg.DB.AcquireTimeout, logger)
	defer dst.Close()

	// Phase 3: copy, tolerant of individual record failures.
	report, err := migration.NewRunner(src, dst, logger).Run(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// maxBodyBytes caps request body size; an over-limit body surfaces as a
// decode error in the handler.
func maxBodyBytes(limit int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// jsonPanicRecovery converts a handler panic into a structured 500 body so
// clients never see a bare connection reset.
func jsonPanicRecovery(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic in handler", zap.Any("panic", rvr), zap.String("path", r.URL.Path))
					auth.WriteError(ww, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
