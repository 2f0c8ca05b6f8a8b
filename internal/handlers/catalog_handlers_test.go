package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
)

func TestServiceRequestLifecycle(t *testing.T) {
	app := newTestApp(t)

	service := models.Service{Name: "Stereo Master", Slug: "stereo-master", Price: decimal.NewFromInt(50), IsActive: true}
	require.NoError(t, app.db.Create(&service).Error)

	rec := app.do(http.MethodPost, "/api/service-requests", fmt.Sprintf(
		`{"service_id":%d,"customer_name":"Alex","customer_email":"a@ex.com","project_details":"8 tracks"}`, service.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	rec = app.do(http.MethodGet, "/api/service-requests/"+id+"/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, fmt.Sprintf(`{"id":%q,"payment_status":"pending"}`, id), rec.Body.String())

	rec = app.do(http.MethodPost, "/api/create-checkout-session", fmt.Sprintf(`{"requestId":%q}`, id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(5000), app.gateway.Requests[0].UnitAmount)
}

func TestCreateServiceRequestValidation(t *testing.T) {
	app := newTestApp(t)

	inactive := models.Service{Name: "Old", Slug: "old", Price: decimal.NewFromInt(10), IsActive: false}
	require.NoError(t, app.db.Create(&inactive).Error)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing fields", body: `{"customer_name":"Alex"}`},
		{name: "bad email", body: `{"service_id":1,"customer_name":"Alex","customer_email":"not-an-email"}`},
		{name: "unknown service", body: `{"service_id":999,"customer_name":"Alex","customer_email":"a@ex.com"}`},
		{name: "inactive service", body: fmt.Sprintf(`{"service_id":%d,"customer_name":"Alex","customer_email":"a@ex.com"}`, inactive.ID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/api/service-requests", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestServiceRequestStatusNotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/api/service-requests/missing/status", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBeatsIsCached(t *testing.T) {
	app := newTestApp(t)

	available := models.Beat{Title: "Night Drive", BasicPrice: decimal.NewFromInt(30), IsActive: true}
	sold := models.Beat{Title: "Gone", ExclusivePrice: decimal.NewFromInt(500), IsActive: true, IsSold: true}
	hidden := models.Beat{Title: "Draft", BasicPrice: decimal.NewFromInt(30), IsActive: false}
	require.NoError(t, app.db.Create(&available).Error)
	require.NoError(t, app.db.Create(&sold).Error)
	require.NoError(t, app.db.Create(&hidden).Error)

	rec := app.do(http.MethodGet, "/api/beats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	beats := decodeBody(t, rec)["beats"].([]interface{})
	require.Len(t, beats, 1)
	require.Equal(t, "Night Drive", beats[0].(map[string]interface{})["title"])
	require.True(t, app.mr.Exists(services.BeatCatalogCacheKey))

	// served from cache until invalidated
	require.NoError(t, app.db.Model(&available).Update("title", "Renamed").Error)
	rec = app.do(http.MethodGet, "/api/beats", "", nil)
	beats = decodeBody(t, rec)["beats"].([]interface{})
	require.Equal(t, "Night Drive", beats[0].(map[string]interface{})["title"])
}

func TestListServices(t *testing.T) {
	app := newTestApp(t)

	require.NoError(t, app.db.Create(&models.Service{Name: "Mixing", Slug: "mixing", Price: decimal.NewFromInt(120), IsActive: true}).Error)
	require.NoError(t, app.db.Create(&models.Service{Name: "Archived", Slug: "archived", Price: decimal.NewFromInt(1), IsActive: false}).Error)

	rec := app.do(http.MethodGet, "/api/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody(t, rec)["services"].([]interface{})
	require.Len(t, list, 1)
	require.Equal(t, "Mixing", list[0].(map[string]interface{})["name"])
}
