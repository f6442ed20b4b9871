package service

import (
	"context"
	"time"

	"ebike-booking/internal/util"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Availability is the per-day capacity snapshot
type Availability struct {
	Date      string `json:"date"`
	Current   int    `json:"current"`
	MaxPerDay int    `json:"maxPerDay"`
	Available bool   `json:"available"`
}

// countOnDate counts non-terminated bookings on date, excluding one order.
// The count and the later insert are not atomic: two concurrent drafts for
// the last free slot can both pass.
func (s *BookingService) countOnDate(ctx context.Context, date, excludeOrderID string) (int, error) {
	start := time.Now()
	defer func() {
		util.CapacityCheckLatency.Observe(time.Since(start).Seconds())
	}()

	count, err := s.repo.CountActiveOnDate(ctx, date, excludeOrderID)
	if err != nil {
		return 0, storeError(err, excludeOrderID)
	}
	return count, nil
}

// admit refuses a draft once the day is full
func (s *BookingService) admit(ctx context.Context, date, excludeOrderID string) error {
	current, err := s.countOnDate(ctx, date, excludeOrderID)
	if err != nil {
		return err
	}
	if current >= s.maxPerDay {
		s.logger.Info("Booking refused, day is full",
			zap.String("date", date),
			zap.Int("current", current),
			zap.Int("max_per_day", s.maxPerDay))
		e := conflictError("capacity_exceeded", "%s is fully booked (%d of %d slots taken)", date, current, s.maxPerDay)
		e.Detail = map[string]interface{}{
			"date":      date,
			"maxPerDay": s.maxPerDay,
			"current":   current,
		}
		return e
	}
	return nil
}

// Availability reports how many slots remain on date
func (s *BookingService) Availability(ctx context.Context, date string) (*Availability, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Availability")
	defer span.End()

	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, validationError("invalid_schedule_date", "date must be a calendar date in YYYY-MM-DD form")
	}

	current, err := s.countOnDate(ctx, date, "")
	if err != nil {
		return nil, err
	}
	return &Availability{
		Date:      date,
		Current:   current,
		MaxPerDay: s.maxPerDay,
		Available: current < s.maxPerDay,
	}, nil
}
