package handlers

import (
	"net/http"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GatewayHandler handles SMS gateway settings requests
type GatewayHandler struct {
	gatewayService *services.GatewayService
}

// NewGatewayHandler creates a new GatewayHandler
func NewGatewayHandler(gatewayService *services.GatewayService) *GatewayHandler {
	return &GatewayHandler{gatewayService: gatewayService}
}

// GetGateway handles GET /gateway
func (h *GatewayHandler) GetGateway(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	settings, err := h.gatewayService.Get(c.Request.Context(), id.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings, "backends": h.gatewayService.Backends()})
}

// ConfigureGateway handles PUT /gateway
func (h *GatewayHandler) ConfigureGateway(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.GatewayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.gatewayService.Configure(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// TestGateway handles POST /gateway/test
func (h *GatewayHandler) TestGateway(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	var req models.GatewayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gatewayService.Test(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
