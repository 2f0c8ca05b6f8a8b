package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
)

type CheckoutHandler struct {
	checkout *services.CheckoutService
}

func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// checkoutSessionRequest accepts both the snake_case id and the older camelCase one
type checkoutSessionRequest struct {
	ServiceRequestID string           `json:"service_request_id"`
	RequestID        string           `json:"requestId"`
	ServiceName      string           `json:"service_name"`
	Amount           *decimal.Decimal `json:"amount"`
	CustomerEmail    string           `json:"customer_email"`
}

// CreateCheckoutSession opens a hosted checkout for a pending service request
func (h *CheckoutHandler) CreateCheckoutSession(c echo.Context) error {
	var req checkoutSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	id := req.ServiceRequestID
	if id == "" {
		id = req.RequestID
	}
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing service request id")
	}

	result, err := h.checkout.CreateServiceCheckout(c.Request().Context(), services.ServiceCheckoutInput{
		RequestID:     id,
		ServiceName:   req.ServiceName,
		Amount:        req.Amount,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return serviceError(err, "Service request not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"sessionId": result.SessionID,
		"url":       result.URL,
	})
}

type beatCheckoutRequest struct {
	BeatID        string             `json:"beat_id"`
	LicenseType   models.LicenseType `json:"license_type"`
	CustomerEmail string             `json:"customer_email"`
}

// CreateBeatCheckout records a pending order for a beat license and opens a hosted checkout
func (h *CheckoutHandler) CreateBeatCheckout(c echo.Context) error {
	var req beatCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	result, err := h.checkout.CreateBeatCheckout(c.Request().Context(), services.BeatCheckoutInput{
		BeatID:        req.BeatID,
		LicenseType:   req.LicenseType,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return serviceError(err, "Beat not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"sessionId": result.SessionID,
		"url":       result.URL,
		"orderId":   result.OrderID,
	})
}
