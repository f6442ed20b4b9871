package service

import (
	"context"
	"errors"
	"testing"

	"ebike-booking/internal/models"
	"ebike-booking/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func rejectedEvent(id string) *models.BookingEvent {
	return &models.BookingEvent{
		BaseEvent:  models.BaseEvent{EventID: id, EventType: models.EventTypeBookingRejected, Timestamp: testNow},
		OrderID:    "EB-1",
		OwnerEmail: "a@b.com",
		FullName:   "Jane Doe",
		Model:      "ECONO350 MINI-II",
	}
}

func TestNotificationDeliveredOncePerEvent(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotificationService(mailer, store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, n.HandleBookingEvent(ctx, rejectedEvent("evt-1")))
	require.NoError(t, n.HandleBookingEvent(ctx, rejectedEvent("evt-1")))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@b.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "could not be approved")
}

func TestNotificationSkipsUninterestingEvents(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotificationService(mailer, store.NewMemoryStore())

	evt := rejectedEvent("evt-2")
	evt.EventType = models.EventTypeBookingCreated
	require.NoError(t, n.HandleBookingEvent(context.Background(), evt))

	evt = rejectedEvent("evt-3")
	evt.OwnerEmail = ""
	require.NoError(t, n.HandleBookingEvent(context.Background(), evt))

	assert.Empty(t, mailer.sent)
}

func TestNotificationFailureLeavesEventUnprocessed(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	processed := store.NewMemoryStore()
	n := NewNotificationService(mailer, processed)
	ctx := context.Background()

	err := n.HandleBookingEvent(ctx, rejectedEvent("evt-4"))
	require.Error(t, err)

	done, err := processed.IsEventProcessed(ctx, "evt-4")
	require.NoError(t, err)
	assert.False(t, done)

	mailer.err = nil
	require.NoError(t, n.HandleBookingEvent(ctx, rejectedEvent("evt-4")))
	assert.Len(t, mailer.sent, 1)
}

func TestDirectPublisherSwallowsFailures(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	pub := NewDirectPublisher(NewNotificationService(mailer, store.NewMemoryStore()))

	assert.NoError(t, pub.PublishBookingEvent(context.Background(), rejectedEvent("evt-5")))
}

func TestRejectNotifiesOwnerExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	mailer := &fakeMailer{}
	env.svc.publisher = NewDirectPublisher(NewNotificationService(mailer, env.repo))
	ctx := context.Background()
	b := env.createPending(t)

	_, err := env.svc.Reject(ctx, adminUser, b.OrderID)
	require.NoError(t, err)
	_, err = env.svc.Reject(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].subject, b.OrderID)
}
