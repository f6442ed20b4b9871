package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ebike-booking/internal/models"
	"ebike-booking/internal/session"
	"ebike-booking/internal/store"

	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2025, 4, 20, 9, 30, 0, 0, time.UTC)
	adminUser = models.Identity{Email: "admin@ebike.test", Role: models.RoleAdmin}
	janeUser  = models.Identity{Email: "a@b.com", Role: "customer"}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.BookingEvent
	err    error
}

func (p *recordingPublisher) PublishBookingEvent(_ context.Context, event *models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) ofType(eventType string) []*models.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.BookingEvent
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc       *BookingService
	repo      *store.MemoryStore
	sessions  *session.MemoryStore
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := store.NewMemoryStore()
	sessions := session.NewMemoryStore(func() time.Time { return testNow })
	pub := &recordingPublisher{}
	svc := NewBookingService(repo, sessions, pub, DefaultRateTable(), BookingServiceConfig{
		MaxPerDay:         5,
		InstallmentMonths: []int{6, 12, 18, 24},
		ReceiptPrefix:     "ECR",
		Clock:             func() time.Time { return testNow },
	})
	return &testEnv{svc: svc, repo: repo, sessions: sessions, publisher: pub}
}

// scenarioDraft is the cash-on-delivery draft used across tests
func scenarioDraft(t *testing.T) *Draft {
	t.Helper()
	return parseDraft(t, `{
		"model": "ECONO350 MINI-II",
		"scheduleDate": "2025-05-01",
		"scheduleTime": "10:00",
		"phone": "09171234567",
		"email": "a@b.com",
		"fullName": "Jane Doe",
		"paymentMethod": "CASH ON DELIVERY",
		"subtotal": 39000,
		"shippingFee": 250
	}`)
}

func parseDraft(t *testing.T, body string) *Draft {
	t.Helper()
	var d Draft
	require.NoError(t, json.Unmarshal([]byte(body), &d))
	return &d
}

func (e *testEnv) createPending(t *testing.T) *models.Booking {
	t.Helper()
	b, _, err := e.svc.CreateBooking(context.Background(), janeUser, scenarioDraft(t), "")
	require.NoError(t, err)
	return b
}

func (e *testEnv) createInstallment(t *testing.T) *models.Booking {
	t.Helper()
	d := parseDraft(t, `{
		"productName": "econo350 mini ii",
		"phone": "09171234567",
		"email": "a@b.com",
		"fullName": "Jane Doe",
		"paymentMethod": "INSTALLMENT",
		"installment": {"monthsToPay": 12, "downPayment": 1600}
	}`)
	b, _, err := e.svc.CreateBooking(context.Background(), janeUser, d, "")
	require.NoError(t, err)
	return b
}

// requireKind asserts err is a service *Error of kind with code
func requireKind(t *testing.T, err error, kind error, code string) *Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var e *Error
	require.True(t, errors.As(err, &e), "expected *service.Error, got %T", err)
	if code != "" {
		require.Equal(t, code, e.Code)
	}
	return e
}
