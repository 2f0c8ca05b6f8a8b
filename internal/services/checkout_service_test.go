package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
	"studio_app_echo/internal/testutil"
)

func seedServiceRequest(t *testing.T, db *gorm.DB, id string, status models.PaymentStatus) models.ServiceRequest {
	t.Helper()

	service := models.Service{
		Name:        "Stereo Master",
		Slug:        "stereo-master-" + id,
		Description: "Stereo mastering for streaming",
		Price:       decimal.NewFromInt(50),
		IsActive:    true,
	}
	require.NoError(t, db.Create(&service).Error)

	req := models.ServiceRequest{
		ID:            id,
		ServiceID:     &service.ID,
		CustomerName:  "Alex",
		CustomerEmail: "a@ex.com",
		PaymentStatus: status,
	}
	require.NoError(t, db.Create(&req).Error)
	return req
}

func seedBeat(t *testing.T, db *gorm.DB) models.Beat {
	t.Helper()

	beat := models.Beat{
		Title:          "Night Drive",
		Genre:          "trap",
		BPM:            140,
		BasicPrice:     decimal.RequireFromString("29.99"),
		PremiumPrice:   decimal.Zero,
		ExclusivePrice: decimal.NewFromInt(500),
		IsActive:       true,
	}
	require.NoError(t, db.Create(&beat).Error)
	return beat
}

func TestCreateServiceCheckoutUsesRecordValues(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	svc := services.NewCheckoutService(db, gateway, "https://studio.test/", "usd")

	seedServiceRequest(t, db, "req-1", models.PaymentStatusPending)

	result, err := svc.CreateServiceCheckout(context.Background(), services.ServiceCheckoutInput{RequestID: "req-1"})
	require.NoError(t, err)
	require.Equal(t, "cs_test_123", result.SessionID)
	require.NotEmpty(t, result.URL)

	require.Equal(t, 1, gateway.Calls())
	sent := gateway.Requests[0]
	require.Equal(t, int64(5000), sent.UnitAmount)
	require.Equal(t, "Stereo Master", sent.ProductName)
	require.Equal(t, "Stereo mastering for streaming", sent.Description)
	require.Equal(t, "a@ex.com", sent.CustomerEmail)
	require.Equal(t, "usd", sent.Currency)
	require.Equal(t, map[string]string{
		services.MetadataServiceRequestID: "req-1",
		services.MetadataServiceName:      "Stereo Master",
		services.MetadataAmount:           "50",
	}, sent.Metadata)
	require.Contains(t, sent.SuccessURL, "https://studio.test/services/checkout/success")
	require.Contains(t, sent.CancelURL, "request_id=req-1")

	var stored models.ServiceRequest
	require.NoError(t, db.First(&stored, "id = ?", "req-1").Error)
	require.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}

func TestCreateServiceCheckoutOverrides(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	svc := services.NewCheckoutService(db, gateway, "https://studio.test", "usd")

	seedServiceRequest(t, db, "req-2", models.PaymentStatusPending)

	amount := decimal.RequireFromString("19.995")
	_, err := svc.CreateServiceCheckout(context.Background(), services.ServiceCheckoutInput{
		RequestID:     "req-2",
		ServiceName:   "Stem Mix",
		Amount:        &amount,
		CustomerEmail: "other@ex.com",
	})
	require.NoError(t, err)

	sent := gateway.Requests[0]
	require.Equal(t, int64(2000), sent.UnitAmount)
	require.Equal(t, "Stem Mix", sent.ProductName)
	require.Equal(t, "other@ex.com", sent.CustomerEmail)
}

func TestCreateServiceCheckoutRejects(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	svc := services.NewCheckoutService(db, gateway, "https://studio.test", "usd")

	seedServiceRequest(t, db, "req-paid", models.PaymentStatusPaid)
	seedServiceRequest(t, db, "req-refunded", models.PaymentStatusRefunded)

	noService := models.ServiceRequest{ID: "req-bare", CustomerEmail: "a@ex.com", PaymentStatus: models.PaymentStatusPending}
	require.NoError(t, db.Create(&noService).Error)

	tests := []struct {
		name      string
		input     services.ServiceCheckoutInput
		wantErr   error
		wantValid bool
	}{
		{name: "missing id", input: services.ServiceCheckoutInput{}, wantValid: true},
		{name: "unknown id", input: services.ServiceCheckoutInput{RequestID: "nope"}, wantErr: services.ErrNotFound},
		{name: "already paid", input: services.ServiceCheckoutInput{RequestID: "req-paid"}, wantErr: services.ErrAlreadySettled},
		{name: "already refunded", input: services.ServiceCheckoutInput{RequestID: "req-refunded"}, wantErr: services.ErrAlreadySettled},
		{name: "no service name or amount", input: services.ServiceCheckoutInput{RequestID: "req-bare"}, wantValid: true},
		{name: "invalid override email", input: services.ServiceCheckoutInput{RequestID: "req-bare", ServiceName: "Mix", CustomerEmail: "not-an-email", Amount: ptrDecimal("10")}, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateServiceCheckout(context.Background(), tt.input)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantValid {
				var verr *services.ValidationError
				require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			}
		})
	}

	require.Equal(t, 0, gateway.Calls())
}

func TestCreateServiceCheckoutGatewayFailure(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	gateway.Err = errors.New("stripe is down")
	svc := services.NewCheckoutService(db, gateway, "https://studio.test", "usd")

	seedServiceRequest(t, db, "req-1", models.PaymentStatusPending)

	_, err := svc.CreateServiceCheckout(context.Background(), services.ServiceCheckoutInput{RequestID: "req-1"})
	require.EqualError(t, err, "stripe is down")
}

func TestCreateBeatCheckout(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	svc := services.NewCheckoutService(db, gateway, "https://studio.test", "usd")

	beat := seedBeat(t, db)

	result, err := svc.CreateBeatCheckout(context.Background(), services.BeatCheckoutInput{
		BeatID:        beat.ID,
		LicenseType:   models.LicenseTypeBasic,
		CustomerEmail: "fan@ex.com",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_123", result.SessionID)
	require.NotEmpty(t, result.OrderID)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", result.OrderID).Error)
	require.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	require.Equal(t, models.LicenseTypeBasic, order.LicenseType)
	require.True(t, order.Amount.Equal(decimal.RequireFromString("29.99")))

	sent := gateway.Requests[0]
	require.Equal(t, int64(2999), sent.UnitAmount)
	require.Equal(t, "Night Drive (basic license)", sent.ProductName)
	require.Equal(t, result.OrderID, sent.Metadata[services.MetadataOrderID])
	require.Equal(t, beat.ID, sent.Metadata[services.MetadataBeatID])
	require.Equal(t, "basic", sent.Metadata[services.MetadataLicenseType])
}

func TestCreateBeatCheckoutRejects(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	svc := services.NewCheckoutService(db, gateway, "https://studio.test", "usd")

	beat := seedBeat(t, db)
	sold := seedBeat(t, db)
	require.NoError(t, db.Model(&sold).Update("is_sold", true).Error)

	tests := []struct {
		name    string
		input   services.BeatCheckoutInput
		wantErr error
	}{
		{name: "missing email", input: services.BeatCheckoutInput{BeatID: beat.ID, LicenseType: models.LicenseTypeBasic}},
		{name: "invalid email", input: services.BeatCheckoutInput{BeatID: beat.ID, LicenseType: models.LicenseTypeBasic, CustomerEmail: "not-an-email"}},
		{name: "display name email", input: services.BeatCheckoutInput{BeatID: beat.ID, LicenseType: models.LicenseTypeBasic, CustomerEmail: "Fan <fan@ex.com>"}},
		{name: "unknown license", input: services.BeatCheckoutInput{BeatID: beat.ID, LicenseType: "platinum", CustomerEmail: "fan@ex.com"}},
		{name: "tier not offered", input: services.BeatCheckoutInput{BeatID: beat.ID, LicenseType: models.LicenseTypePremium, CustomerEmail: "fan@ex.com"}},
		{name: "sold beat", input: services.BeatCheckoutInput{BeatID: sold.ID, LicenseType: models.LicenseTypeBasic, CustomerEmail: "fan@ex.com"}},
		{name: "unknown beat", input: services.BeatCheckoutInput{BeatID: "missing", LicenseType: models.LicenseTypeBasic, CustomerEmail: "fan@ex.com"}, wantErr: services.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBeatCheckout(context.Background(), tt.input)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			var verr *services.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
		})
	}

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
	require.Equal(t, 0, gateway.Calls())
}

func TestCreateBeatCheckoutGatewayFailureRemovesOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	gateway := testutil.NewFakeGateway()
	gateway.Err = errors.New("stripe down")
	svc := services.NewCheckoutService(db, gateway, "https://studio.test", "usd")

	beat := seedBeat(t, db)

	_, err := svc.CreateBeatCheckout(context.Background(), services.BeatCheckoutInput{
		BeatID:        beat.ID,
		LicenseType:   models.LicenseTypeBasic,
		CustomerEmail: "fan@ex.com",
	})
	require.EqualError(t, err, "stripe down")
	require.Equal(t, 1, gateway.Calls())

	var orders int64
	require.NoError(t, db.Unscoped().Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
}

func ptrDecimal(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}
