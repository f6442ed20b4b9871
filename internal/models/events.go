package models

import "time"

// Event types
const (
	EventTypeBookingCreated           = "BOOKING_CREATED"
	EventTypeBookingApproved          = "BOOKING_APPROVED"
	EventTypeBookingRejected          = "BOOKING_REJECTED"
	EventTypeBookingCancelled         = "BOOKING_CANCELLED"
	EventTypeFulfillmentUpdated       = "BOOKING_FULFILLMENT_UPDATED"
	EventTypePaymentStatusChanged     = "BOOKING_PAYMENT_STATUS_CHANGED"
	EventTypeInstallmentPaymentMarked = "INSTALLMENT_PAYMENT_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingEvent is published after a booking change has been persisted
type BookingEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	OwnerEmail        string `json:"owner_email"`
	FullName          string `json:"full_name"`
	Model             string `json:"model"`
	Status            string `json:"status"`
	FulfillmentStatus string `json:"fulfillment_status"`
	PaymentStatus     string `json:"payment_status"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	ScheduleDate      string `json:"schedule_date,omitempty"`
	Month             int    `json:"month,omitempty"`
	Actor             string `json:"actor,omitempty"`
}
