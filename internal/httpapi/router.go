package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/agent-services/internal/common"
	"github.com/suPer8Hu/agent-services/internal/config"
	"github.com/suPer8Hu/agent-services/internal/httpapi/handlers"
	"github.com/suPer8Hu/agent-services/internal/httpapi/middleware"
)

func newEngine(cfg config.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// NewChatRouter serves the Babel Bot chat API.
func NewChatRouter(h *handlers.Handler, cfg config.Config) *gin.Engine {
	r := newEngine(cfg)
	r.POST("/chat", h.Chat)
	r.POST("/chat/stream", h.ChatStream)
	r.GET("/health", h.ChatHealth)
	r.DELETE("/session/:id", h.ClearSession)
	return r
}

// NewTaskRouter serves the task-extraction API. The /api/task-management
// routes require a service token when SERVICE_JWT_SECRET is set.
func NewTaskRouter(h *handlers.Handler, cfg config.Config) *gin.Engine {
	r := newEngine(cfg)
	r.GET("/health", h.TaskHealth)

	api := r.Group("/api/task-management")
	api.Use(middleware.AuthRequired(cfg.ServiceJWTSecret))
	api.POST("/process", h.ProcessTask)
	api.GET("/extractions", h.ListExtractions)
	return r
}
