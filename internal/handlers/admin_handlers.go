package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
)

const paymentEventsLimit = 100

// AdminHandler backs the studio back office
type AdminHandler struct {
	db     *gorm.DB
	cache  *services.RedisCache
	logger *zap.SugaredLogger
}

func NewAdminHandler(db *gorm.DB, cache *services.RedisCache, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{db: db, cache: cache, logger: logger}
}

func statusFilter(c echo.Context) (models.PaymentStatus, error) {
	status := models.PaymentStatus(strings.ToLower(c.QueryParam("status")))
	switch status {
	case "", models.PaymentStatusPending, models.PaymentStatusPaid, models.PaymentStatusRefunded:
		return status, nil
	}
	return "", echo.NewHTTPError(http.StatusBadRequest, "status must be pending, paid or refunded")
}

// ListServiceRequests pages through service requests, newest first
func (h *AdminHandler) ListServiceRequests(c echo.Context) error {
	status, err := statusFilter(c)
	if err != nil {
		return err
	}

	query := h.db.WithContext(c.Request().Context()).Model(&models.ServiceRequest{})
	if status != "" {
		query = query.Where("payment_status = ?", status)
	}

	paged, pagination, err := paginate(c, query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to count service requests").SetInternal(err)
	}

	var requests []models.ServiceRequest
	if err := paged.Preload("Service").Order("created_at DESC").Find(&requests).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load service requests").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       requests,
		"pagination": pagination,
	})
}

// ListOrders pages through beat orders, newest first
func (h *AdminHandler) ListOrders(c echo.Context) error {
	status, err := statusFilter(c)
	if err != nil {
		return err
	}

	query := h.db.WithContext(c.Request().Context()).Model(&models.Order{})
	if status != "" {
		query = query.Where("payment_status = ?", status)
	}

	paged, pagination, err := paginate(c, query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to count orders").SetInternal(err)
	}

	var orders []models.Order
	if err := paged.Preload("Beat").Order("created_at DESC").Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load orders").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       orders,
		"pagination": pagination,
	})
}

// ListPaymentEvents returns the most recent webhook deliveries
func (h *AdminHandler) ListPaymentEvents(c echo.Context) error {
	var events []models.PaymentEventRecord
	err := h.db.WithContext(c.Request().Context()).
		Order("created_at DESC").
		Limit(paymentEventsLimit).
		Find(&events).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load payment events").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    events,
	})
}

type serviceInput struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"is_active"`
}

// CreateService adds a studio service to the catalog
func (h *AdminHandler) CreateService(c echo.Context) error {
	var in serviceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Name is required")
	}
	if !in.Price.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "Price must be greater than zero")
	}

	slug := slugify(in.Slug)
	if slug == "" {
		slug = slugify(in.Name)
	}

	service := models.Service{
		Name:        in.Name,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price.Round(2),
		IsActive:    in.IsActive == nil || *in.IsActive,
	}

	ctx := c.Request().Context()

	var existing int64
	if err := h.db.WithContext(ctx).Model(&models.Service{}).Where("slug = ?", slug).Count(&existing).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create service").SetInternal(err)
	}
	if existing > 0 {
		return echo.NewHTTPError(http.StatusConflict, "A service with this slug already exists")
	}

	if err := h.db.WithContext(ctx).Create(&service).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create service").SetInternal(err)
	}

	h.invalidate(c, services.ServiceCatalogCacheKey)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    service,
	})
}

type beatInput struct {
	Title          string          `json:"title"`
	Genre          string          `json:"genre"`
	BPM            int             `json:"bpm"`
	MusicalKey     string          `json:"musical_key"`
	PreviewURL     string          `json:"preview_url"`
	BasicPrice     decimal.Decimal `json:"basic_price"`
	PremiumPrice   decimal.Decimal `json:"premium_price"`
	ExclusivePrice decimal.Decimal `json:"exclusive_price"`
	IsActive       *bool           `json:"is_active"`
}

// CreateBeat adds a beat to the catalog. Tiers left at zero are not offered.
func (h *AdminHandler) CreateBeat(c echo.Context) error {
	var in beatInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	}
	if in.BasicPrice.IsNegative() || in.PremiumPrice.IsNegative() || in.ExclusivePrice.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "Prices cannot be negative")
	}
	if !in.BasicPrice.IsPositive() && !in.PremiumPrice.IsPositive() && !in.ExclusivePrice.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "At least one license tier must have a price")
	}
	if in.BPM < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "BPM cannot be negative")
	}

	beat := models.Beat{
		Title:          in.Title,
		Genre:          strings.TrimSpace(in.Genre),
		BPM:            in.BPM,
		MusicalKey:     strings.TrimSpace(in.MusicalKey),
		PreviewURL:     strings.TrimSpace(in.PreviewURL),
		BasicPrice:     in.BasicPrice.Round(2),
		PremiumPrice:   in.PremiumPrice.Round(2),
		ExclusivePrice: in.ExclusivePrice.Round(2),
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&beat).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create beat").SetInternal(err)
	}

	h.invalidate(c, services.BeatCatalogCacheKey)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    beat,
	})
}

func (h *AdminHandler) invalidate(c echo.Context, key string) {
	if err := h.cache.Delete(c.Request().Context(), key); err != nil {
		h.logger.Warnw("Failed to invalidate catalog cache", "key", key, "error", err)
	}
}
