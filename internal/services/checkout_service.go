package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CheckoutService starts hosted payments for service requests and beat orders
type CheckoutService struct {
	db       *gorm.DB
	gateway  PaymentGateway
	appURL   string
	currency string
}

func NewCheckoutService(db *gorm.DB, gateway PaymentGateway, appURL, currency string) *CheckoutService {
	return &CheckoutService{
		db:       db,
		gateway:  gateway,
		appURL:   strings.TrimRight(appURL, "/"),
		currency: currency,
	}
}

// ServiceCheckoutInput identifies the request to pay for.
// The optional fields override the stored values; older clients still send them.
type ServiceCheckoutInput struct {
	RequestID     string
	ServiceName   string
	Amount        *decimal.Decimal
	CustomerEmail string
}

// BeatCheckoutInput selects a beat and license tier to buy
type BeatCheckoutInput struct {
	BeatID        string
	LicenseType   models.LicenseType
	CustomerEmail string
}

// CheckoutResult is returned to the browser so it can redirect to the hosted page
type CheckoutResult struct {
	SessionID string
	URL       string
	OrderID   string
}

// CreateServiceCheckout validates a pending service request and opens a hosted checkout for it.
// Nothing is written locally; the webhook reconciles the outcome.
func (s *CheckoutService) CreateServiceCheckout(ctx context.Context, in ServiceCheckoutInput) (*CheckoutResult, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, invalid("service request id is required")
	}

	var req models.ServiceRequest
	err := s.db.WithContext(ctx).Preload("Service").First(&req, "id = ?", in.RequestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup service request %s: %w", in.RequestID, err)
	}

	if req.PaymentStatus.IsSettled() {
		return nil, ErrAlreadySettled
	}

	serviceName := strings.TrimSpace(in.ServiceName)
	if serviceName == "" && req.Service != nil {
		serviceName = req.Service.Name
	}

	var amount decimal.Decimal
	if in.Amount != nil {
		amount = *in.Amount
	} else if req.Service != nil {
		amount = req.Service.Price
	}

	email := strings.TrimSpace(in.CustomerEmail)
	if email == "" {
		email = req.CustomerEmail
	}

	if serviceName == "" || !amount.IsPositive() || email == "" {
		return nil, invalid("service name, amount and customer email are required")
	}
	if !validEmail(email) {
		return nil, invalid("customer email is invalid")
	}

	var description string
	if req.Service != nil {
		description = strings.TrimSpace(req.Service.Description)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		ProductName:   serviceName,
		Description:   description,
		UnitAmount:    toMinorUnits(amount),
		Currency:      s.currency,
		CustomerEmail: email,
		Metadata: map[string]string{
			MetadataServiceRequestID: req.ID,
			MetadataServiceName:      serviceName,
			MetadataAmount:           amount.String(),
		},
		SuccessURL: s.appURL + "/services/checkout/success?session_id={CHECKOUT_SESSION_ID}&request_id=" + url.QueryEscape(req.ID),
		CancelURL:  s.appURL + "/services/checkout/cancel?request_id=" + url.QueryEscape(req.ID),
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreateBeatCheckout prices the requested license tier, records a pending order and opens a hosted checkout.
// The order is removed again when the gateway refuses the session.
func (s *CheckoutService) CreateBeatCheckout(ctx context.Context, in BeatCheckoutInput) (*CheckoutResult, error) {
	email := strings.TrimSpace(in.CustomerEmail)
	if strings.TrimSpace(in.BeatID) == "" || email == "" {
		return nil, invalid("beat id and customer email are required")
	}
	if !validEmail(email) {
		return nil, invalid("customer email is invalid")
	}
	if !in.LicenseType.Valid() {
		return nil, invalid("license type must be basic, premium or exclusive")
	}

	var beat models.Beat
	if err := s.db.WithContext(ctx).First(&beat, "id = ?", in.BeatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup beat %s: %w", in.BeatID, err)
	}

	if !beat.Available() {
		return nil, invalid("beat is no longer available")
	}

	price, ok := beat.PriceFor(in.LicenseType)
	if !ok {
		return nil, invalid(fmt.Sprintf("%s license is not offered for this beat", in.LicenseType))
	}

	order := models.Order{
		BeatID:        beat.ID,
		LicenseType:   in.LicenseType,
		CustomerEmail: email,
		Amount:        price,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		ProductName:   fmt.Sprintf("%s (%s license)", beat.Title, in.LicenseType),
		UnitAmount:    toMinorUnits(price),
		Currency:      s.currency,
		CustomerEmail: email,
		Metadata: map[string]string{
			MetadataOrderID:     order.ID,
			MetadataBeatID:      beat.ID,
			MetadataLicenseType: string(in.LicenseType),
		},
		SuccessURL: s.appURL + "/beats/checkout/success?session_id={CHECKOUT_SESSION_ID}&order_id=" + url.QueryEscape(order.ID),
		CancelURL:  s.appURL + "/beats/checkout/cancel?order_id=" + url.QueryEscape(order.ID),
	})
	if err != nil {
		if delErr := s.db.WithContext(context.WithoutCancel(ctx)).Unscoped().Delete(&order).Error; delErr != nil {
			return nil, fmt.Errorf("%w (removing order %s: %v)", err, order.ID, delErr)
		}
		return nil, err
	}

	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL, OrderID: order.ID}, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// toMinorUnits converts a major-unit price to the integer amount the gateway expects
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
