package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("registrars are mounted under the API prefix", func(t *testing.T) {
		engine := gin.New()
		New(engine, zap.NewNop()).Register(pingRegistrar{})

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
	})

	t.Run("root registrars bypass the prefix", func(t *testing.T) {
		engine := gin.New()
		New(engine, zap.NewNop()).RegisterRoot(pingRegistrar{})

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
