package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"screenlink/internal/coordinator"
	"screenlink/internal/middleware"
)

// AdminHandler serves read-only operator views of the coordinator.
type AdminHandler struct {
	Coordinator *coordinator.Coordinator
}

func (h *AdminHandler) Sessions(c *gin.Context) {
	sessions := h.Coordinator.Sessions()
	operator, _ := middleware.OperatorFromContext(c)
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions), "operator": operator})
}

func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Coordinator.Metrics().Snapshot())
}
