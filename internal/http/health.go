package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/config"
	"github.com/readilyreads/server/internal/database"
)

type HealthResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	APIVersion string `json:"api_version"`
}

type HealthController struct {
	db *database.Database
}

func NewHealthController(db *database.Database) *HealthController {
	return &HealthController{db: db}
}

// Status reports liveness and database connectivity. The response is
// informational: a failed connectivity check flips the database flag but
// the endpoint still answers 200.
func (h *HealthController) Status(c *gin.Context) {
	dbStatus := "ok"
	if h.db == nil {
		dbStatus = "not configured"
	} else if err := h.db.Ping(); err != nil {
		dbStatus = "error"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Database:   dbStatus,
		APIVersion: config.APIVersion,
	})
}
