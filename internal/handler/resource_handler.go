package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resbook/service-booking/internal/application"
	"github.com/resbook/service-booking/internal/domain/principal"
	"github.com/resbook/service-booking/pkg/auth"
	"github.com/resbook/service-booking/pkg/middleware"
	"github.com/resbook/service-booking/pkg/response"
)

// ResourceHandler handles HTTP requests for the resource catalogue.
type ResourceHandler struct {
	service *application.ResourceService
}

func NewResourceHandler(service *application.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: service}
}

func (h *ResourceHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	registerValidators()
	authMW := middleware.AuthMiddleware(jwtManager)

	resources := r.Group("/api/v1/resources")
	resources.Use(authMW)
	{
		resources.GET("", h.ListResources)
		resources.GET("/:id", h.GetResource)
	}

	admin := r.Group("/api/v1/admin/resources")
	admin.Use(authMW, middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("", h.CreateResource)
		admin.PUT("/:id", h.UpdateResource)
		admin.POST("/:id/activate", h.ActivateResource)
		admin.POST("/:id/deactivate", h.DeactivateResource)
	}
}

// ListResources handles GET /api/v1/resources?active=true|false.
func (h *ResourceHandler) ListResources(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), parseOptionalBool(c, "active"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ResourceHandler) GetResource(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "resource")
	if !ok {
		return
	}
	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ResourceHandler) CreateResource(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req application.ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "resource")
	if !ok {
		return
	}
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req application.ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Update(c.Request.Context(), p, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ResourceHandler) ActivateResource(c *gin.Context) {
	h.toggle(c, h.service.Activate)
}

func (h *ResourceHandler) DeactivateResource(c *gin.Context) {
	h.toggle(c, h.service.Deactivate)
}

func (h *ResourceHandler) toggle(
	c *gin.Context,
	apply func(ctx context.Context, p principal.Principal, id uuid.UUID) (*application.ResourceDTO, error),
) {
	id, ok := parseIDParam(c, "id", "resource")
	if !ok {
		return
	}
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	result, err := apply(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
