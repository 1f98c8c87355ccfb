package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/database/audit"
	"github.com/readilyreads/server/internal/database/progress"
	"github.com/readilyreads/server/internal/entities"
)

// ProgressController exposes the nested reading-progress resource under a
// book.
type ProgressController struct {
	progress *progress.Repository
	audit    *audit.Repository
}

func NewProgressController(progressRepo *progress.Repository, auditRepo *audit.Repository) *ProgressController {
	return &ProgressController{progress: progressRepo, audit: auditRepo}
}

// Get returns the progress record for the book, percentage included.
func (pc *ProgressController) Get(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, err := pc.progress.Get(GetUserID(c), bookID)
	if err != nil {
		respondStoreError(c, err, "reading progress")
		return
	}
	c.JSON(http.StatusOK, record)
}

// Update applies a partial update of page position, dates, and notes.
func (pc *ProgressController) Update(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var update progress.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if update.StartDate != nil && !validDate(*update.StartDate) {
		respondBadRequest(c, "dates must use the YYYY-MM-DD format")
		return
	}
	if update.TargetEndDate != nil && !validDate(*update.TargetEndDate) {
		respondBadRequest(c, "dates must use the YYYY-MM-DD format")
		return
	}

	userID := GetUserID(c)
	record, err := pc.progress.Apply(userID, bookID, update)
	if err != nil {
		if errors.Is(err, progress.ErrNegativePage) {
			respondBadRequest(c, err.Error())
			return
		}
		respondStoreError(c, err, "reading progress")
		return
	}

	if pc.audit != nil {
		auditErr := pc.audit.LogEvent(&entities.AuditEvent{
			UserID:    userID,
			EventType: entities.AuditEventProgress,
			Action:    "progress_update",
			EntityID:  &bookID,
			IPAddress: c.ClientIP(),
			Status:    entities.AuditStatusSuccess,
		})
		if auditErr != nil {
			log.Printf("Failed to record audit event (progress_update): %v", auditErr)
		}
	}

	c.JSON(http.StatusOK, record)
}
