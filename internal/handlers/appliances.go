package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getAppliances returns the live snapshot of every monitored appliance.
func (h *Handler) getAppliances(c *gin.Context) {
	statuses := h.services.Monitor.Status()
	c.JSON(http.StatusOK, gin.H{
		"count":      len(statuses),
		"appliances": statuses,
	})
}
