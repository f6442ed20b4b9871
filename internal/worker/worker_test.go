package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ebike-booking/internal/models"
	"ebike-booking/internal/service"
	"ebike-booking/internal/store"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMailer struct {
	subjects []string
}

func (m *countingMailer) Send(_ context.Context, _, subject, _ string) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

func message(t *testing.T, eventID, eventType string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(models.BookingEvent{
		BaseEvent:  models.BaseEvent{EventID: eventID, EventType: eventType, Timestamp: time.Now()},
		OrderID:    "EB-1",
		OwnerEmail: "a@b.com",
		FullName:   "Jane Doe",
		Model:      "ECONO350 MINI-II",
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("booking-EB-1"), Value: value}
}

func TestEventHandlerNotifiesOncePerEvent(t *testing.T) {
	mailer := &countingMailer{}
	handler := NewEventHandler(service.NewNotificationService(mailer, store.NewMemoryStore()))
	ctx := context.Background()

	// redelivered message
	require.NoError(t, handler.HandleMessage(ctx, message(t, "evt-1", models.EventTypeBookingRejected)))
	require.NoError(t, handler.HandleMessage(ctx, message(t, "evt-1", models.EventTypeBookingRejected)))
	// not a notification event
	require.NoError(t, handler.HandleMessage(ctx, message(t, "evt-2", models.EventTypeBookingCreated)))
	require.NoError(t, handler.HandleMessage(ctx, message(t, "evt-3", models.EventTypeBookingApproved)))

	assert.Len(t, mailer.subjects, 2)
}
