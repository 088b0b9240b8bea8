package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hookrelay/internal/domain/subscription"
	"hookrelay/internal/services"
	"hookrelay/internal/transport/httpdto"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SubscriptionHandler struct {
	service *services.SubscriptionService
}

func NewSubscriptionHandler(service *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req httpdto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	orgID, ok := services.OrgIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	sub, err := h.service.Create(c.Request.Context(), orgID, services.CreateSubscriptionInput{
		Name:   req.Name,
		URL:    req.URL,
		Events: httpdto.ToKinds(req.Events),
		Mode:   subscription.DeliveryMode(req.Mode),
		Signed: req.Signed,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.CreateSubscriptionResponse{
		SubscriptionResponse: httpdto.FromSubscription(sub),
		Secret:               sub.Secret,
	}))
}

func (h *SubscriptionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	orgID, ok := services.OrgIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	subs, total, err := h.service.List(c.Request.Context(), orgID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListSubscriptionsResponse{
		Subscriptions: httpdto.FromSubscriptionSlice(subs),
		Total:         total,
	}))
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	orgID, id, ok := orgAndID(c)
	if !ok {
		return
	}

	sub, err := h.service.Get(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSubscription(sub)))
}

func (h *SubscriptionHandler) Update(c *gin.Context) {
	orgID, id, ok := orgAndID(c)
	if !ok {
		return
	}

	var req httpdto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	in := services.UpdateSubscriptionInput{
		Name:   req.Name,
		URL:    req.URL,
		Events: httpdto.ToKinds(req.Events),
		Active: req.Active,
	}
	if req.Mode != nil {
		mode := subscription.DeliveryMode(*req.Mode)
		in.Mode = &mode
	}

	sub, err := h.service.Update(c.Request.Context(), orgID, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSubscription(sub)))
}

func (h *SubscriptionHandler) Delete(c *gin.Context) {
	orgID, id, ok := orgAndID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Test sends one synchronous test delivery and reports the raw HTTP
// result, bypassing the queue.
func (h *SubscriptionHandler) Test(c *gin.Context) {
	orgID, id, ok := orgAndID(c)
	if !ok {
		return
	}

	result, err := h.service.SendTest(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func orgAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	orgID, ok := services.OrgIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, id, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, hookrelay_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, hookrelay_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, hookrelay_errors.ErrConflict),
		errors.Is(err, hookrelay_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, hookrelay_errors.ErrInvalidInput),
		errors.Is(err, hookrelay_errors.ErrInvalidURL),
		errors.Is(err, hookrelay_errors.ErrNoEvents),
		errors.Is(err, hookrelay_errors.ErrUnknownEventKind):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	default:
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
	}
}
