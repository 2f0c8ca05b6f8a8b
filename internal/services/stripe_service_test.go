package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"studio_app_echo/internal/services"
)

const testWebhookSecret = "whsec_test_secret"

func stripeBackends(t *testing.T, handler http.HandlerFunc) *stripe.Backends {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func signedPayload(t *testing.T, secret, body string) (string, []byte) {
	t.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header, signed.Payload
}

func eventJSON(id, eventType, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		id, stripe.APIVersion, eventType, object)
}

func TestStripeCreateCheckoutSession(t *testing.T) {
	var form url.Values
	backends := stripeBackends(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err = url.ParseQuery(string(body))
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_123","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_123"}`)
	})

	svc := services.NewStripeService("sk_test_123", testWebhookSecret, backends)

	sess, err := svc.CreateCheckoutSession(context.Background(), services.CheckoutRequest{
		ProductName:   "Stereo Master",
		Description:   "Stereo mastering for streaming",
		UnitAmount:    5000,
		Currency:      "usd",
		CustomerEmail: "a@ex.com",
		Metadata: map[string]string{
			services.MetadataServiceRequestID: "req-1",
		},
		SuccessURL: "https://studio.test/success",
		CancelURL:  "https://studio.test/cancel",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_123", sess.ID)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", sess.URL)

	require.Equal(t, "payment", form.Get("mode"))
	require.Equal(t, "5000", form.Get("line_items[0][price_data][unit_amount]"))
	require.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	require.Equal(t, "Stereo Master", form.Get("line_items[0][price_data][product_data][name]"))
	require.Equal(t, "Stereo mastering for streaming", form.Get("line_items[0][price_data][product_data][description]"))
	require.Equal(t, "1", form.Get("line_items[0][quantity]"))
	require.Equal(t, "a@ex.com", form.Get("customer_email"))
	require.Equal(t, "req-1", form.Get("metadata[service_request_id]"))
	require.Equal(t, "req-1", form.Get("payment_intent_data[metadata][service_request_id]"))
	require.Equal(t, "https://studio.test/success", form.Get("success_url"))
}

func TestStripeCreateCheckoutSessionError(t *testing.T) {
	backends := stripeBackends(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`)
	})

	svc := services.NewStripeService("sk_test_123", testWebhookSecret, backends)
	_, err := svc.CreateCheckoutSession(context.Background(), services.CheckoutRequest{
		ProductName: "Stereo Master",
		UnitAmount:  5000,
		Currency:    "zzz",
	})
	require.Error(t, err)

	var stripeErr *stripe.Error
	require.True(t, errors.As(err, &stripeErr))
	require.Equal(t, "Invalid currency", stripeErr.Msg)
}

func TestStripeParseEvent(t *testing.T) {
	svc := services.NewStripeService("sk_test_123", testWebhookSecret, nil)

	t.Run("checkout completed", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_1", "checkout.session.completed",
			`{"id":"cs_test_123","object":"checkout.session","amount_total":4950,"payment_status":"paid","payment_intent":"pi_123","metadata":{"service_request_id":"req-1","service_name":"Stem Mix"}}`))

		ev, err := svc.ParseEvent(payload, header)
		require.NoError(t, err)
		require.Equal(t, "evt_1", ev.ID)
		require.Equal(t, services.PaymentEventCompleted, ev.Type)
		require.Equal(t, "checkout.session.completed", ev.GatewayType)
		require.Equal(t, "req-1", ev.ServiceRequestID)
		require.Equal(t, "pi_123", ev.PaymentIntentID)
		require.Equal(t, int64(4950), ev.AmountMinor)
		require.Equal(t, "Stem Mix", ev.ItemName)
		require.Equal(t, payload, ev.Payload)
	})

	t.Run("checkout completed with delayed payment", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_8", "checkout.session.completed",
			`{"id":"cs_test_789","object":"checkout.session","amount_total":5000,"payment_status":"unpaid","metadata":{"service_request_id":"req-1"}}`))

		ev, err := svc.ParseEvent(payload, header)
		require.NoError(t, err)
		require.Equal(t, services.PaymentEventOther, ev.Type)
		require.Empty(t, ev.ServiceRequestID)
	})

	t.Run("async payment succeeded carries order", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_2", "checkout.session.async_payment_succeeded",
			`{"id":"cs_test_456","object":"checkout.session","payment_intent":"pi_456","metadata":{"order_id":"ord-1"}}`))

		ev, err := svc.ParseEvent(payload, header)
		require.NoError(t, err)
		require.Equal(t, services.PaymentEventCompleted, ev.Type)
		require.Equal(t, "ord-1", ev.OrderID)
		require.Empty(t, ev.ServiceRequestID)
	})

	t.Run("charge refunded", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_3", "charge.refunded",
			`{"id":"ch_1","object":"charge","amount_refunded":5000,"payment_intent":"pi_123","metadata":{}}`))

		ev, err := svc.ParseEvent(payload, header)
		require.NoError(t, err)
		require.Equal(t, services.PaymentEventRefunded, ev.Type)
		require.Empty(t, ev.ServiceRequestID)
		require.Equal(t, "pi_123", ev.PaymentIntentID)
		require.Equal(t, int64(5000), ev.AmountMinor)
	})

	t.Run("other event type", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_4", "customer.created",
			`{"id":"cus_1","object":"customer"}`))

		ev, err := svc.ParseEvent(payload, header)
		require.NoError(t, err)
		require.Equal(t, services.PaymentEventOther, ev.Type)
	})

	t.Run("wrong secret", func(t *testing.T) {
		header, payload := signedPayload(t, "whsec_other", eventJSON("evt_5", "checkout.session.completed", `{"id":"cs_1"}`))

		_, err := svc.ParseEvent(payload, header)
		require.ErrorIs(t, err, services.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_6", "checkout.session.completed",
			`{"id":"cs_1","object":"checkout.session","metadata":{"service_request_id":"req-1"}}`))
		tampered := []byte(string(payload[:len(payload)-2]) + " }")

		_, err := svc.ParseEvent(tampered, header)
		require.ErrorIs(t, err, services.ErrInvalidSignature)
	})

	t.Run("malformed object", func(t *testing.T) {
		header, payload := signedPayload(t, testWebhookSecret, eventJSON("evt_7", "checkout.session.completed", `{"metadata":"oops"}`))

		_, err := svc.ParseEvent(payload, header)
		require.ErrorIs(t, err, services.ErrMalformedEvent)
	})
}

func TestStripeParseEventWithoutSecret(t *testing.T) {
	svc := services.NewStripeService("sk_test_123", "", nil)

	_, err := svc.ParseEvent([]byte(`{}`), "t=1,v1=abc")
	require.ErrorIs(t, err, services.ErrWebhookSecret)
}
