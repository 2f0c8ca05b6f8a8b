package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Routes groups the handlers mounted by RegisterRoutes
type Routes struct {
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Catalog  *CatalogHandler
	Admin    *AdminHandler
	Auth     *AuthHandler
}

// RegisterRoutes mounts the public API, the Stripe webhook and the admin API on e.
// requireAdmin guards everything under /admin/api.
func RegisterRoutes(e *echo.Echo, r Routes, requireAdmin echo.MiddlewareFunc) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/create-checkout-session", r.Checkout.CreateCheckoutSession)
	api.POST("/create-beat-checkout", r.Checkout.CreateBeatCheckout)
	api.POST("/webhooks/stripe", r.Webhook.StripeWebhook)

	api.GET("/services", r.Catalog.ListServices)
	api.GET("/beats", r.Catalog.ListBeats)
	api.POST("/service-requests", r.Catalog.CreateServiceRequest)
	api.GET("/service-requests/:id/status", r.Catalog.ServiceRequestStatus)

	e.POST("/auth/login", r.Auth.HandleLogin)
	e.POST("/auth/logout", r.Auth.HandleLogout)

	admin := e.Group("/admin/api", requireAdmin)
	admin.GET("/service-requests", r.Admin.ListServiceRequests)
	admin.GET("/orders", r.Admin.ListOrders)
	admin.GET("/payment-events", r.Admin.ListPaymentEvents)
	admin.POST("/services", r.Admin.CreateService)
	admin.POST("/beats", r.Admin.CreateBeat)
}
