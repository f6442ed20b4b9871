package service

import (
	"context"
	"fmt"

	"ebike-booking/internal/models"
	"ebike-booking/internal/util"

	"go.uber.org/zap"
)

// Mailer delivers one message to a customer
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer backed by the global logger
func NewLogMailer() *LogMailer {
	return &LogMailer{logger: util.GetLogger()}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("Notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// NotificationService turns booking events into owner notifications. Each
// event id is delivered at most once.
type NotificationService struct {
	mailer    Mailer
	processed ProcessedEventStore
	logger    *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(mailer Mailer, processed ProcessedEventStore) *NotificationService {
	return &NotificationService{
		mailer:    mailer,
		processed: processed,
		logger:    util.GetLogger(),
	}
}

// HandleBookingEvent notifies the owner about approvals, rejections,
// cancellations, fulfillment progress and recorded payments
func (n *NotificationService) HandleBookingEvent(ctx context.Context, event *models.BookingEvent) error {
	ctx, span := util.StartBookingSpan(ctx, "NotificationService.HandleBookingEvent", event.OrderID)
	defer span.End()

	subject, body, ok := composeNotification(event)
	if !ok {
		return nil
	}

	processed, err := n.processed.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if processed {
		n.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	if err := n.mailer.Send(ctx, event.OwnerEmail, subject, body); err != nil {
		util.NotificationsFailedTotal.WithLabelValues(event.EventType).Inc()
		n.logger.Error("Failed to notify owner",
			zap.String("order_id", event.OrderID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to send notification: %w", err)
	}
	util.NotificationsSentTotal.WithLabelValues(event.EventType).Inc()

	if err := n.processed.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		n.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}

func composeNotification(e *models.BookingEvent) (subject, body string, ok bool) {
	if e.OwnerEmail == "" {
		return "", "", false
	}
	name := e.FullName
	if name == "" {
		name = "Customer"
	}

	switch e.EventType {
	case models.EventTypeBookingApproved:
		subject = fmt.Sprintf("Your %s booking %s is approved", e.Model, e.OrderID)
		body = fmt.Sprintf("Hi %s, your booking %s has been approved. Receipt number: %s. Current status: %s.",
			name, e.OrderID, e.ReceiptNumber, e.FulfillmentStatus)
	case models.EventTypeBookingRejected:
		subject = fmt.Sprintf("Update on your booking %s", e.OrderID)
		body = fmt.Sprintf("Hi %s, we are sorry but your booking %s for %s could not be approved.",
			name, e.OrderID, e.Model)
	case models.EventTypeBookingCancelled:
		subject = fmt.Sprintf("Booking %s cancelled", e.OrderID)
		body = fmt.Sprintf("Hi %s, booking %s has been cancelled.", name, e.OrderID)
	case models.EventTypeFulfillmentUpdated:
		subject = fmt.Sprintf("Booking %s: %s", e.OrderID, e.FulfillmentStatus)
		body = fmt.Sprintf("Hi %s, your %s is now: %s.", name, e.Model, e.FulfillmentStatus)
	case models.EventTypeInstallmentPaymentMarked:
		subject = fmt.Sprintf("Installment payment received for %s", e.OrderID)
		body = fmt.Sprintf("Hi %s, we recorded your payment for month %d of booking %s.", name, e.Month, e.OrderID)
	default:
		return "", "", false
	}
	return subject, body, true
}

// DirectPublisher hands events straight to the notification service when no
// broker is configured. Delivery failures are logged and swallowed.
type DirectPublisher struct {
	notifier *NotificationService
}

// NewDirectPublisher creates an in-process publisher
func NewDirectPublisher(notifier *NotificationService) *DirectPublisher {
	return &DirectPublisher{notifier: notifier}
}

func (p *DirectPublisher) PublishBookingEvent(ctx context.Context, event *models.BookingEvent) error {
	if err := p.notifier.HandleBookingEvent(ctx, event); err != nil {
		p.notifier.logger.Warn("In-process notification failed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}
