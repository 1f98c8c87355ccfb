package http

import (
	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/auth"
	"github.com/readilyreads/server/internal/database"
	"github.com/readilyreads/server/internal/database/audit"
	"github.com/readilyreads/server/internal/database/books"
	"github.com/readilyreads/server/internal/database/progress"
)

// RouterConfig carries the dependencies NewRouter wires into controllers.
type RouterConfig struct {
	Database    *database.Database
	AuthService *auth.Service
	BookStore   *books.Repository
	Progress    *progress.Repository
	AuditStore  *audit.Repository
}

// NewRouter creates and configures the HTTP router with all endpoints.
// Everything under /api except the token endpoints requires a valid bearer
// token.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	healthController := NewHealthController(cfg.Database)
	router.GET("/health", healthController.Status)

	authController := NewAuthController(cfg.AuthService, cfg.AuditStore)

	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/register", authController.Register)
		authRoutes.POST("/login", authController.Login)
		authRoutes.POST("/token/refresh", authController.RefreshToken)
	}

	authorized := router.Group("/api")
	authorized.Use(auth.RequireAuth(cfg.AuthService))
	{
		authorized.GET("/auth/me", authController.Me)
		authorized.PATCH("/auth/me", authController.UpdateMe)

		booksController := NewBooksController(cfg.BookStore, cfg.Progress, cfg.AuditStore)
		authorized.GET("/books", booksController.List)
		authorized.POST("/books", booksController.Create)
		authorized.GET("/books/currently-reading", booksController.CurrentlyReading)
		authorized.GET("/books/genres", booksController.Genres)
		authorized.GET("/books/:id", booksController.Get)
		authorized.PUT("/books/:id", booksController.Update)
		authorized.PATCH("/books/:id", booksController.Update)
		authorized.DELETE("/books/:id", booksController.Delete)
		authorized.PATCH("/books/:id/toggle-reading", booksController.ToggleReading)

		progressController := NewProgressController(cfg.Progress, cfg.AuditStore)
		authorized.GET("/books/:id/progress", progressController.Get)
		authorized.PUT("/books/:id/progress", progressController.Update)
		authorized.PATCH("/books/:id/progress", progressController.Update)

		auditController := NewAuditController(cfg.AuditStore)
		authorized.GET("/audit/events", auditController.ListEvents)
	}

	return router
}
