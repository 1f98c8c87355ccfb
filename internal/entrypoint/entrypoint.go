package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/auth"
	"github.com/readilyreads/server/internal/config"
	"github.com/readilyreads/server/internal/database"
	"github.com/readilyreads/server/internal/database/audit"
	"github.com/readilyreads/server/internal/database/books"
	"github.com/readilyreads/server/internal/database/progress"
	http_controllers "github.com/readilyreads/server/internal/http"
	"github.com/readilyreads/server/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown on SIGINT / SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop the maintenance scheduler)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Readily Reads API v%s", version)

	if cfg.Auth.JWTSecret == "" {
		secret, err := auth.GenerateSigningSecret()
		if err != nil {
			log.Fatalf("Failed to generate JWT secret: %v", err)
		}
		cfg.Auth.JWTSecret = secret
		log.Printf("Generated JWT signing secret (set AUTH_JWT_SECRET to persist sessions across restarts)")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	authService := auth.NewService(db.DB, cfg.Auth)
	booksRepo := books.NewRepository(db.DB)
	progressRepo := progress.NewRepository(db.DB)
	auditRepo := audit.NewRepository(db.DB)

	hasUsers, _ := authService.HasUsers()
	if !hasUsers {
		log.Printf("No users found. Register via POST /api/auth/register or the create-user command.")
	}

	scheduler := tasks.NewMaintenanceScheduler(authService, auditRepo, cfg.Maintenance)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:    db,
		AuthService: authService,
		BookStore:   booksRepo,
		Progress:    progressRepo,
		AuditStore:  auditRepo,
	})

	onShutdown := func(ctx context.Context) {
		scheduler.Stop()
	}

	Serve(router, cfg, onShutdown)
}
