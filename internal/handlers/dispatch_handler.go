package handlers

import (
	"net/http"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// DispatchHandler handles batch notification requests
type DispatchHandler struct {
	dispatchService  *services.DispatchService
	recipientService *services.RecipientService
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(dispatchService *services.DispatchService, recipientService *services.RecipientService) *DispatchHandler {
	return &DispatchHandler{
		dispatchService:  dispatchService,
		recipientService: recipientService,
	}
}

// Dispatch handles POST /notifications/dispatch
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.dispatchService.Dispatch(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// NotifyAbsentees handles POST /notifications/absentees
func (h *DispatchHandler) NotifyAbsentees(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.AbsenteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.recipientService.NotifyAbsentees(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// NotifyFeeBalance handles POST /notifications/fee-balance
func (h *DispatchHandler) NotifyFeeBalance(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.FeeBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.recipientService.NotifyFeeDefaulters(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetryFailed handles POST /notifications/retry
func (h *DispatchHandler) RetryFailed(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.RetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.dispatchService.RetryFailed(c.Request.Context(), id, req.DeliveryIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
