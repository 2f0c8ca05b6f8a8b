package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
)

const catalogCacheTTL = 5 * time.Minute

// CatalogHandler serves the public storefront API
type CatalogHandler struct {
	db    *gorm.DB
	cache *services.RedisCache
}

func NewCatalogHandler(db *gorm.DB, cache *services.RedisCache) *CatalogHandler {
	return &CatalogHandler{db: db, cache: cache}
}

// ListServices returns the active studio services
func (h *CatalogHandler) ListServices(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := services.GetOrSet(ctx, h.cache, services.ServiceCatalogCacheKey, catalogCacheTTL, func() ([]models.Service, error) {
		var out []models.Service
		err := h.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&out).Error
		return out, err
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load services").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"services": list,
	})
}

// ListBeats returns beats that can still be purchased
func (h *CatalogHandler) ListBeats(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := services.GetOrSet(ctx, h.cache, services.BeatCatalogCacheKey, catalogCacheTTL, func() ([]models.Beat, error) {
		var out []models.Beat
		err := h.db.WithContext(ctx).
			Where("is_active = ? AND is_sold = ?", true, false).
			Order("created_at DESC").
			Find(&out).Error
		return out, err
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load beats").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"beats":   list,
	})
}

type serviceRequestInput struct {
	ServiceID      uint   `json:"service_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	ProjectDetails string `json:"project_details"`
}

// CreateServiceRequest stores a customer inquiry as a pending service request
func (h *CatalogHandler) CreateServiceRequest(c echo.Context) error {
	var in serviceRequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if in.ServiceID == 0 || in.CustomerName == "" || in.CustomerEmail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "service_id, customer_name and customer_email are required")
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid customer email")
	}

	ctx := c.Request().Context()

	var service models.Service
	if err := h.db.WithContext(ctx).Where("id = ? AND is_active = ?", in.ServiceID, true).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown service")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load service").SetInternal(err)
	}

	req := models.ServiceRequest{
		ServiceID:      &service.ID,
		CustomerName:   in.CustomerName,
		CustomerEmail:  in.CustomerEmail,
		ProjectDetails: strings.TrimSpace(in.ProjectDetails),
		PaymentStatus:  models.PaymentStatusPending,
	}
	if err := h.db.WithContext(ctx).Create(&req).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create service request").SetInternal(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"id":      req.ID,
	})
}

// ServiceRequestStatus lets the success page poll until the webhook has landed
func (h *CatalogHandler) ServiceRequestStatus(c echo.Context) error {
	id := c.Param("id")

	var req models.ServiceRequest
	if err := h.db.WithContext(c.Request().Context()).Select("id", "payment_status").First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Service request not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load service request").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":             req.ID,
		"payment_status": req.PaymentStatus,
	})
}
