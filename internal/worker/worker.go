package worker

import (
	"context"

	"ebike-booking/internal/broker"
	"ebike-booking/internal/models"
	"ebike-booking/internal/service"
	"ebike-booking/internal/util"

	"go.uber.org/zap"
)

// NotificationEventTypes are the booking events that reach the owner
var NotificationEventTypes = []string{
	models.EventTypeBookingApproved,
	models.EventTypeBookingRejected,
	models.EventTypeBookingCancelled,
	models.EventTypeFulfillmentUpdated,
	models.EventTypeInstallmentPaymentMarked,
}

// NotificationWorker consumes booking events and notifies owners
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier *service.NotificationService) *NotificationWorker {
	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: NewEventHandler(notifier),
		logger:       util.GetLogger(),
	}
}

// NewEventHandler wires the notifier to every notification event type
func NewEventHandler(notifier *service.NotificationService) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	eventHandler.On(notifier.HandleBookingEvent, NotificationEventTypes...)
	return eventHandler
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}
