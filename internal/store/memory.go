package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ebike-booking/internal/models"
)

// MemoryStore keeps bookings in process. It backs STORE_DRIVER=memory and the
// service and handler tests, and mirrors the Postgres semantics: unique order
// ids, version compare-and-swap on update, processed-event dedupe.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	bookings  map[string]*models.Booking
	processed map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:  make(map[string]*models.Booking),
		processed: make(map[string]time.Time),
	}
}

func (m *MemoryStore) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[b.OrderID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, b.OrderID)
	}
	m.nextID++
	b.ID = m.nextID
	b.Version = 1
	m.bookings[b.OrderID] = b.Clone()
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, orderID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	return b.Clone(), nil
}

func (m *MemoryStore) ListBookings(_ context.Context, filter BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Booking
	for _, b := range m.bookings {
		if filter.OwnerEmail != "" && !strings.EqualFold(b.OwnerEmail, filter.OwnerEmail) {
			continue
		}
		if filter.ScheduleDate != "" && (b.ScheduleDate == nil || *b.ScheduleDate != filter.ScheduleDate) {
			continue
		}
		if filter.Stage != "" && b.Stage != filter.Stage {
			continue
		}
		out = append(out, *b.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountActiveOnDate(_ context.Context, date, excludeOrderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, b := range m.bookings {
		if b.ScheduleDate == nil || *b.ScheduleDate != date || b.OrderID == excludeOrderID {
			continue
		}
		if b.Stage.Terminal() || b.ReviewDecision == models.ReviewDecisionRejected {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryStore) UpdateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.bookings[b.OrderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, b.OrderID)
	}
	if current.Version != b.Version {
		return fmt.Errorf("%w: %s", ErrStale, b.OrderID)
	}

	b.Version++
	stored := b.Clone()
	stored.ID = current.ID
	stored.CreatedAt = current.CreatedAt
	m.bookings[b.OrderID] = stored
	return nil
}

func (m *MemoryStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[eventID]; !ok {
		m.processed[eventID] = time.Now()
	}
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
