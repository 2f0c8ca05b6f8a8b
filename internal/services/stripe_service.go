package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Metadata keys embedded in checkout sessions and read back from webhook events
const (
	MetadataServiceRequestID = "service_request_id"
	MetadataServiceName      = "service_name"
	MetadataAmount           = "amount"
	MetadataOrderID          = "order_id"
	MetadataBeatID           = "beat_id"
	MetadataLicenseType      = "license_type"
)

// MaxWebhookBodyBytes bounds the raw payload read by the webhook endpoint
const MaxWebhookBodyBytes = int64(65536)

// PaymentGateway creates hosted checkout sessions and verifies signed notifications
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*PaymentEvent, error)
}

// CheckoutRequest describes a single-item hosted checkout
type CheckoutRequest struct {
	ProductName   string
	Description   string
	UnitAmount    int64 // minor currency units
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the gateway-issued session returned to the caller; it is not persisted
type CheckoutSession struct {
	ID  string
	URL string
}

type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "completed"
	PaymentEventRefunded  PaymentEventType = "refunded"
	PaymentEventOther     PaymentEventType = "other"
)

// PaymentEvent is a verified gateway notification reduced to what reconciliation needs
type PaymentEvent struct {
	ID               string
	Type             PaymentEventType
	GatewayType      string // event type as named by the gateway
	ServiceRequestID string
	OrderID          string
	PaymentIntentID  string
	AmountMinor      int64
	ItemName         string // product name charged, when the session carried one
	Payload          []byte
}

// StripeService implements PaymentGateway on top of the Stripe API
type StripeService struct {
	api           *client.API
	webhookSecret string
}

// NewStripeService creates a Stripe client. backends may be nil to use Stripe's default endpoints.
func NewStripeService(secretKey, webhookSecret string, backends *stripe.Backends) *StripeService {
	return &StripeService{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession creates a payment-mode Checkout Session with one line item.
// Metadata is set on both the session and its payment intent so refund events can be traced back.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		productData.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					ProductData: productData,
					UnitAmount:  stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{},
	}
	params.Context = ctx

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
		params.PaymentIntentData.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseEvent verifies the Stripe-Signature header over the exact payload bytes and decodes the event
func (s *StripeService) ParseEvent(payload []byte, signature string) (*PaymentEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrWebhookSecret
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	pe := &PaymentEvent{
		ID:          event.ID,
		Type:        PaymentEventOther,
		GatewayType: string(event.Type),
		Payload:     payload,
	}
	if event.Data == nil {
		return pe, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", ErrMalformedEvent, err)
		}
		// delayed payment methods complete the session unpaid; async_payment_succeeded settles them later
		if event.Type == stripe.EventTypeCheckoutSessionCompleted && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			break
		}
		pe.Type = PaymentEventCompleted
		pe.ServiceRequestID = sess.Metadata[MetadataServiceRequestID]
		pe.OrderID = sess.Metadata[MetadataOrderID]
		pe.ItemName = sess.Metadata[MetadataServiceName]
		pe.AmountMinor = sess.AmountTotal
		if sess.PaymentIntent != nil {
			pe.PaymentIntentID = sess.PaymentIntent.ID
		}

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("%w: decode charge: %v", ErrMalformedEvent, err)
		}
		pe.Type = PaymentEventRefunded
		pe.ServiceRequestID = charge.Metadata[MetadataServiceRequestID]
		pe.OrderID = charge.Metadata[MetadataOrderID]
		pe.AmountMinor = charge.AmountRefunded
		if charge.PaymentIntent != nil {
			pe.PaymentIntentID = charge.PaymentIntent.ID
		}
	}

	return pe, nil
}
