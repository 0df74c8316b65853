package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/resbook/service-booking/internal/application"
	"github.com/resbook/service-booking/pkg/auth"
	"github.com/resbook/service-booking/pkg/middleware"
	"github.com/resbook/service-booking/pkg/response"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers payment routes.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	registerValidators()
	authMW := middleware.AuthMiddleware(jwtManager)

	api := r.Group("/api/v1")
	api.Use(authMW)
	{
		api.POST("/bookings/:id/payments", h.StartPayment)
		api.GET("/bookings/:id/payments", h.ListBookingPayments)
		api.GET("/payments", h.ListMyPayments)
	}
}

// StartPayment handles POST /api/v1/bookings/:id/payments.
func (h *PaymentHandler) StartPayment(c *gin.Context) {
	bookingID, ok := parseIDParam(c, "id", "booking")
	if !ok {
		return
	}
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req application.StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.BookingID = bookingID

	result, err := h.service.StartPayment(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookingPayments handles GET /api/v1/bookings/:id/payments.
func (h *PaymentHandler) ListBookingPayments(c *gin.Context) {
	bookingID, ok := parseIDParam(c, "id", "booking")
	if !ok {
		return
	}
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	result, err := h.service.ListByBooking(c.Request.Context(), p, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListMyPayments handles GET /api/v1/payments.
func (h *PaymentHandler) ListMyPayments(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	result, err := h.service.ListMine(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
