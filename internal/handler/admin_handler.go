package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/resbook/service-booking/internal/application"
	"github.com/resbook/service-booking/pkg/auth"
	"github.com/resbook/service-booking/pkg/middleware"
	"github.com/resbook/service-booking/pkg/response"
)

// AdminHandler handles admin HTTP requests for bookings and payments.
type AdminHandler struct {
	bookings *application.BookingService
	payments *application.PaymentService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService, payments *application.PaymentService) *AdminHandler {
	return &AdminHandler{bookings: bookings, payments: payments}
}

// FinalizePaymentRequest is the body of a manual payment resolution.
type FinalizePaymentRequest struct {
	Succeeded *bool `json:"succeeded" binding:"required"`
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/payments", h.ListPayments)
		admin.POST("/payments/:id/finalize", h.FinalizePayment)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := h.bookings.ListAll(c.Request.Context(), p, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	stats, err := h.bookings.GetStats(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	result, err := h.payments.ListAll(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// FinalizePayment handles POST /api/v1/admin/payments/:id/finalize. It
// settles a payment whose provider call never produced an answer.
func (h *AdminHandler) FinalizePayment(c *gin.Context) {
	paymentID, ok := parseIDParam(c, "id", "payment")
	if !ok {
		return
	}
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req FinalizePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.payments.FinalizePayment(c.Request.Context(), p, paymentID, *req.Succeeded)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
