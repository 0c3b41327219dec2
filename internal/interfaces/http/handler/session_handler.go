package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	app "github.com/reims/backend/internal/application/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/reims/backend/internal/interfaces/http/dto"
)

// SessionHandler exposes the reconciliation session lifecycle over HTTP.
type SessionHandler struct {
	BaseHandler
	sessions *app.SessionService
}

func NewSessionHandler(sessions *app.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
	}
}

func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/run", h.RunSession)
		sessions.POST("/:id/cancel", h.CancelSession)
	}
}

// CreateSession creates a reconciliation session for a property and period.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req app.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, session)
}

// ListSessions lists sessions, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sessions)
}

// GetSession returns one session by ID.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, session)
}

// RunSession executes the reconciliation pipeline for a session. The request
// body may disable individual strategies; an empty body runs everything.
func (h *SessionHandler) RunSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req app.RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}

	summary, err := h.sessions.Run(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// CancelSession requests cancellation of a running session.
func (h *SessionHandler) CancelSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.Cancel(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}
