package handler

import (
	"net/http"

	"hookrelay/internal/queue"
	"hookrelay/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// OpsHandler exposes queue depth counters for the operator surface.
type OpsHandler struct {
	queue queue.Queue
}

func NewOpsHandler(q queue.Queue) *OpsHandler {
	return &OpsHandler{queue: q}
}

func (h *OpsHandler) Stats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNAVAILABLE"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}
