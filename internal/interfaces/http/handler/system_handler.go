package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reims/backend/internal/interfaces/http/dto"
)

// SystemHandler exposes liveness and readiness probes.
type SystemHandler struct {
	BaseHandler
	db        *sql.DB
	startedAt time.Time
	version   string
}

func NewSystemHandler(db *sql.DB, version string, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: NewBaseHandler(logger),
		db:          db,
		startedAt:   time.Now(),
		version:     version,
	}
}

func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/healthz", h.Liveness)
	rg.GET("/readyz", h.Readiness)
}

// Liveness reports that the process is up.
func (h *SystemHandler) Liveness(c *gin.Context) {
	h.Success(c, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

// Readiness reports whether the service can reach its database.
func (h *SystemHandler) Readiness(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.logger.Warn("readiness probe failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable,
				dto.NewErrorResponse("NOT_READY", "Database is unreachable"))
			return
		}
	}
	h.Success(c, gin.H{"status": "ready"})
}
