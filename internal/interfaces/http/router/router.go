package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar is implemented by every handler that mounts routes.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts handler routes under a versioned API prefix.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	logger     *zap.Logger
}

func New(engine *gin.Engine, logger *zap.Logger) *Router {
	return &Router{
		engine:     engine,
		apiVersion: "v1",
		logger:     logger,
	}
}

// Register mounts each registrar under /api/<version>.
func (r *Router) Register(registrars ...RouteRegistrar) {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range registrars {
		registrar.RegisterRoutes(api)
	}
	r.logger.Info("routes registered",
		zap.String("api_version", r.apiVersion),
		zap.Int("registrars", len(registrars)))
}

// RegisterRoot mounts a registrar at the engine root, outside the API
// prefix. Used for health probes.
func (r *Router) RegisterRoot(registrar RouteRegistrar) {
	registrar.RegisterRoutes(&r.engine.RouterGroup)
}
