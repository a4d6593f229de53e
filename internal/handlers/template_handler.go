package handlers

import (
	"net/http"
	"strconv"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// TemplateHandler handles template-related HTTP requests
type TemplateHandler struct {
	templateService *services.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// CreateTemplate handles POST /templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := h.templateService.Create(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// ListTemplates handles GET /templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	filter := models.TemplateFilter{
		Category: models.TemplateCategory(c.Query("category")),
		Search:   c.Query("search"),
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active must be true or false"})
			return
		}
		filter.Active = &active
	}
	page, limit := pagination(c)

	items, total, err := h.templateService.List(c.Request.Context(), id.TenantID, filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PageResponse{Items: items, Total: total, Page: page, Limit: limit})
}

// GetTemplate handles GET /templates/:code
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	tpl, err := h.templateService.Get(c.Request.Context(), id.TenantID, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// UpdateTemplate handles PUT /templates/:code
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var patch models.TemplatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := h.templateService.Update(c.Request.Context(), id, c.Param("code"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// DeleteTemplate handles DELETE /templates/:code
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.templateService.Delete(c.Request.Context(), id, c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// SeedTemplates handles POST /templates/seed
func (h *TemplateHandler) SeedTemplates(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	seeded, err := h.templateService.SeedDefaults(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"templates": seeded, "count": len(seeded)})
}

// PreviewTemplate handles GET /templates/:code/preview. Every query
// parameter becomes a template variable.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	data := make(map[string]interface{})
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			data[k] = v[0]
		}
	}

	msg, err := h.templateService.Preview(c.Request.Context(), id.TenantID, c.Param("code"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": c.Param("code"), "message": msg})
}
