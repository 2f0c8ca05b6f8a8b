package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio_app_echo/internal/config"
)

func TestNormalizeChatID(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		countryCode string
		expected    string
	}{
		{
			name:        "national number",
			input:       "0412345678",
			countryCode: "61",
			expected:    "61412345678@c.us",
		},
		{
			name:        "number with country code",
			input:       "61412345678",
			countryCode: "61",
			expected:    "61412345678@c.us",
		},
		{
			name:        "number with plus sign",
			input:       "+15551234567",
			countryCode: "1",
			expected:    "15551234567@c.us",
		},
		{
			name:        "group id",
			input:       "120363407813232111@g.us",
			countryCode: "1",
			expected:    "120363407813232111@g.us",
		},
		{
			name:        "national number with suffix",
			input:       "0412345678@c.us",
			countryCode: "61",
			expected:    "61412345678@c.us",
		},
		{
			name:        "no default country code",
			input:       "0412345678",
			countryCode: "",
			expected:    "0412345678@c.us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeChatID(tt.input, tt.countryCode)
			if result != tt.expected {
				t.Errorf("NormalizeChatID(%q, %q) = %q; want %q", tt.input, tt.countryCode, result, tt.expected)
			}
		})
	}
}

func TestWahaSendMessage(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		text  map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		if r.URL.Path == "/api/sendText" {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&text))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewWahaService(config.WahaConfig{BaseURL: srv.URL, APIKey: "secret", Session: "studio", DefaultCountryCode: "1"})
	svc.pause = func(time.Duration) {}

	err := svc.SendMessage(context.Background(), "05551234567", "New booking")
	require.NoError(t, err)

	require.Equal(t, []string{"/api/sendSeen", "/api/startTyping", "/api/stopTyping", "/api/sendText"}, paths)
	require.Equal(t, "15551234567@c.us", text["chatId"])
	require.Equal(t, "New booking", text["text"])
	require.Equal(t, "studio", text["session"])
}

func TestWahaSendMessageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not started", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	svc := NewWahaService(config.WahaConfig{BaseURL: srv.URL})
	svc.pause = func(time.Duration) {}

	err := svc.SendMessage(context.Background(), "15551234567", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to send seen")
	require.Contains(t, err.Error(), "422")
}
