// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
)

// NewTestDB returns a migrated SQLite database that lives for the duration of the test
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// NewTestCache returns a RedisCache backed by an in-process miniredis server
func NewTestCache(t *testing.T) (*services.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := services.NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

// FakeGateway is an in-memory PaymentGateway.
// Events handed to ParseEvent are looked up by signature.
type FakeGateway struct {
	mu       sync.Mutex
	Requests []services.CheckoutRequest
	Session  services.CheckoutSession
	Err      error
	Events   map[string]*services.PaymentEvent
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Session: services.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.test/c/pay/cs_test_123"},
		Events:  map[string]*services.PaymentEvent{},
	}
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return nil, g.Err
	}
	sess := g.Session
	return &sess, nil
}

func (g *FakeGateway) ParseEvent(payload []byte, signature string) (*services.PaymentEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev, ok := g.Events[signature]
	if !ok {
		return nil, fmt.Errorf("%w: unknown test signature", services.ErrInvalidSignature)
	}
	out := *ev
	out.Payload = payload
	return &out, nil
}

// Calls returns the number of checkout sessions requested so far
func (g *FakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

// FakeAdminAuth accepts the tokens and session cookies listed in Emails, keyed by token value
type FakeAdminAuth struct {
	Emails map[string]string
}

func (a *FakeAdminAuth) verify(value string) (*auth.Token, error) {
	email, ok := a.Emails[value]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &auth.Token{UID: "uid-" + value, Claims: map[string]interface{}{"email": email}}, nil
}

func (a *FakeAdminAuth) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	return a.verify(idToken)
}

func (a *FakeAdminAuth) VerifySessionCookie(_ context.Context, sessionCookie string) (*auth.Token, error) {
	return a.verify(sessionCookie)
}

func (a *FakeAdminAuth) SessionCookie(_ context.Context, idToken string, _ time.Duration) (string, error) {
	if _, err := a.verify(idToken); err != nil {
		return "", err
	}
	return "session-" + idToken, nil
}
