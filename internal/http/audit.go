package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/database/audit"
)

// AuditController lets a user browse their own audit trail.
type AuditController struct {
	audit *audit.Repository
}

func NewAuditController(auditRepo *audit.Repository) *AuditController {
	return &AuditController{audit: auditRepo}
}

// ListEvents returns the caller's audit events, newest first.
func (ac *AuditController) ListEvents(c *gin.Context) {
	limit, offset := parsePagination(c)

	events, total, err := ac.audit.GetEvents(GetUserID(c), limit, offset)
	if err != nil {
		respondInternalError(c, err, "audit events")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
