// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"net/http"
	"time"

	"hookrelay/internal/domain/event"
	"hookrelay/internal/services"
	"hookrelay/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// EventHandler is the HTTP ingress for producers that live outside this
// process; in-process producers call services.Publisher directly.
type EventHandler struct {
	publisher *services.Publisher
}

func NewEventHandler(publisher *services.Publisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

func (h *EventHandler) Publish(c *gin.Context) {
	var req httpdto.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	orgID, ok := services.OrgIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	result, err := h.publisher.Publish(c.Request.Context(), event.Event{
		Kind:           event.Kind(req.Kind),
		OrganizationID: orgID,
		BusinessKey:    req.BusinessKey,
		Data:           req.Data,
		OccurredAt:     occurredAt,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.PublishEventResponse{
		Suppressed: result.Suppressed,
		Enqueued:   result.Enqueued,
		Skipped:    result.Skipped,
	}))
}
