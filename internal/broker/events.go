package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"ebike-booking/internal/models"
	"ebike-booking/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes booking events keyed by order id
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishBookingEvent publishes any booking lifecycle event
func (ep *EventPublisher) PublishBookingEvent(ctx context.Context, event *models.BookingEvent) error {
	key := fmt.Sprintf("booking-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// BookingEventHandlerFunc handles one decoded booking event
type BookingEventHandlerFunc func(context.Context, *models.BookingEvent) error

// EventHandler routes incoming events to handlers registered by type
type EventHandler struct {
	handlers map[string]BookingEventHandlerFunc
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]BookingEventHandlerFunc),
		logger:   util.GetLogger(),
	}
}

// On registers handler for the given event types
func (eh *EventHandler) On(handler BookingEventHandlerFunc, eventTypes ...string) {
	for _, t := range eventTypes {
		eh.handlers[t] = handler
	}
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		// a message that cannot be decoded will never succeed; drop it
		eh.logger.Error("Failed to unmarshal base event", zap.ByteString("value", msg.Value), zap.Error(err))
		return nil
	}

	handler, ok := eh.handlers[baseEvent.EventType]
	if !ok {
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
		return nil
	}

	var event models.BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		eh.logger.Error("Failed to unmarshal booking event",
			zap.String("event_type", baseEvent.EventType),
			zap.Error(err))
		return nil
	}

	eh.logger.Info("Handling event",
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID),
		zap.String("order_id", event.OrderID))
	return handler(ctx, &event)
}
