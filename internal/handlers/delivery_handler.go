package handlers

import (
	"net/http"

	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// DeliveryHandler serves the delivery ledger
type DeliveryHandler struct {
	deliveryService *services.DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(deliveryService *services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService}
}

// ListDeliveries handles GET /deliveries
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	filter, err := deliveryFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page, limit := pagination(c)

	items, total, err := h.deliveryService.List(c.Request.Context(), id.TenantID, filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PageResponse{Items: items, Total: total, Page: page, Limit: limit})
}

// GetStatistics handles GET /deliveries/statistics
func (h *DeliveryHandler) GetStatistics(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	filter, err := deliveryFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.deliveryService.Statistics(c.Request.Context(), id.TenantID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetDelivery handles GET /deliveries/:id
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	entry, err := h.deliveryService.Get(c.Request.Context(), id.TenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// MarkDelivered handles POST /deliveries/:id/delivered
func (h *DeliveryHandler) MarkDelivered(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	entry, err := h.deliveryService.MarkDelivered(c.Request.Context(), id.TenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CancelDelivery handles POST /deliveries/:id/cancel
func (h *DeliveryHandler) CancelDelivery(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	entry, err := h.deliveryService.Cancel(c.Request.Context(), id.TenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
