package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"studio_app_echo/internal/services"
)

type WebhookHandler struct {
	gateway    services.PaymentGateway
	reconciler *services.ReconciliationService
	logger     *zap.SugaredLogger
}

func NewWebhookHandler(gateway services.PaymentGateway, reconciler *services.ReconciliationService, logger *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{gateway: gateway, reconciler: reconciler, logger: logger}
}

// StripeWebhook verifies a Stripe delivery over the raw body and reconciles it.
// Verification failures answer in plain text and never touch the database.
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		return c.String(http.StatusBadRequest, "Missing Stripe-Signature header")
	}

	body := http.MaxBytesReader(c.Response(), c.Request().Body, services.MaxWebhookBodyBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		h.logger.Warnw("Failed to read webhook body", "error", err)
		return c.String(http.StatusBadRequest, "Unable to read request body")
	}

	event, err := h.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, services.ErrWebhookSecret) {
			h.logger.Errorw("Webhook secret is not configured")
			return c.String(http.StatusInternalServerError, "Webhook secret not configured")
		}
		h.logger.Warnw("Rejected webhook delivery", "error", err)
		return c.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
	}

	if err := h.reconciler.HandleEvent(c.Request().Context(), event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process webhook").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
