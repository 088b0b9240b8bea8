package handler

import (
	"net/http"
	"strconv"

	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/services"
	"hookrelay/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeliveryHandler struct {
	service *services.DeliveryService
}

func NewDeliveryHandler(service *services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

func (h *DeliveryHandler) Get(c *gin.Context) {
	orgID, id, ok := orgAndID(c)
	if !ok {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromDelivery(rec)))
}

func (h *DeliveryHandler) List(c *gin.Context) {
	orgID, ok := services.OrgIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	var (
		list  []delivery.Record
		total int64
		err   error
	)
	if sid := c.Query("subscription_id"); sid != "" {
		subscriptionID, parseErr := uuid.Parse(sid)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid subscription_id", "INVALID_REQUEST"))
			return
		}
		list, total, err = h.service.ListBySubscription(c.Request.Context(), orgID, subscriptionID, page, limit)
	} else {
		list, total, err = h.service.ListByOrganization(c.Request.Context(), orgID, page, limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListDeliveriesResponse{
		Deliveries: httpdto.FromDeliverySlice(list),
		Total:      total,
	}))
}

// Redeliver re-enqueues a dead-lettered delivery on operator request.
func (h *DeliveryHandler) Redeliver(c *gin.Context) {
	orgID, id, ok := orgAndID(c)
	if !ok {
		return
	}

	if err := h.service.Redeliver(c.Request.Context(), orgID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(gin.H{"redelivered": true}))
}
