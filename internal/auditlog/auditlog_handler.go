package auditlog

import (
	"net/http"
	"strconv"

	"github.com/cpusmsng/vercajch/pkg/roles"
	"github.com/cpusmsng/vercajch/pkg/security"

	"github.com/gin-gonic/gin"
)

type AuditLogHandler struct {
	Repository *AuditLogRepository
}

func NewHandler(r *AuditLogRepository) *AuditLogHandler {
	return &AuditLogHandler{Repository: r}
}

func (h *AuditLogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit/:resource/:id", security.Authorize(roles.AuditLog), h.GetResourceLog)
}

// GetResourceLog returns the audit trail of one resource, newest first.
func (h *AuditLogHandler) GetResourceLog(c *gin.Context) {
	resourceID, err := strconv.Atoi(c.Param("id"))
	if err != nil || resourceID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource ID"})
		return
	}

	entries, err := h.Repository.GetResourceLog(resourceID, c.Param("resource"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to get audit log", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entries)
}
