package service

import (
	"context"

	"ebike-booking/internal/models"
	"ebike-booking/internal/store"
)

// BookingRepository is satisfied by store.Store and store.MemoryStore
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, orderID string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter store.BookingFilter) ([]models.Booking, error)
	CountActiveOnDate(ctx context.Context, date, excludeOrderID string) (int, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
}

// EventPublisher delivers booking events after the change is persisted
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event *models.BookingEvent) error
}

// ProcessedEventStore remembers which events a consumer already handled
type ProcessedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

var (
	_ BookingRepository   = (*store.Store)(nil)
	_ BookingRepository   = (*store.MemoryStore)(nil)
	_ ProcessedEventStore = (*store.Store)(nil)
	_ ProcessedEventStore = (*store.MemoryStore)(nil)
)
