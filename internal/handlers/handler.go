package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/service"
)

// Handler wires the read-only status API to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)

	api := router.Group("/api/v1")
	{
		api.GET("/appliances", h.getAppliances)
		api.GET("/events", h.getEvents)
	}

	// Live appliance-state stream (HTTP upgrade) on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// logAndJSONError centralizes error logging and the error response shape.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}
