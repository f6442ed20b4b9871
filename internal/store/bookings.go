package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ebike-booking/internal/models"

	"github.com/lib/pq"
)

// BookingFilter narrows ListBookings; zero fields are ignored
type BookingFilter struct {
	OwnerEmail   string
	ScheduleDate string
	Stage        models.Stage
	Limit        int
}

const bookingColumns = `id, order_id, owner_email, full_name, phone, model, color_variant, unit_image_ref,
	subtotal, shipping_fee, total, payment_method, payment_status, service_type,
	TO_CHAR(schedule_date, 'YYYY-MM-DD') AS schedule_date,
	CASE WHEN EXTRACT(SECOND FROM schedule_time) = 0 THEN TO_CHAR(schedule_time, 'HH24:MI')
	     ELSE TO_CHAR(schedule_time, 'HH24:MI:SS') END AS schedule_time,
	status, fulfillment_status, stage, review_decision, reviewed_at, tracking_eta, tracking_location,
	receipt_number, receipt_issued_at, shipping_address, shipping_coordinates, installment,
	version, created_at, updated_at`

// CreateBooking inserts a new booking and fills in its generated id and version
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			order_id, owner_email, full_name, phone, model, color_variant, unit_image_ref,
			subtotal, shipping_fee, total, payment_method, payment_status, service_type,
			schedule_date, schedule_time, status, fulfillment_status, stage, review_decision,
			reviewed_at, tracking_eta, tracking_location, receipt_number, receipt_issued_at,
			shipping_address, shipping_coordinates, installment, version, created_at, updated_at)
		VALUES (
			:order_id, :owner_email, :full_name, :phone, :model, :color_variant, :unit_image_ref,
			:subtotal, :shipping_fee, :total, :payment_method, :payment_status, :service_type,
			:schedule_date, :schedule_time, :status, :fulfillment_status, :stage, :review_decision,
			:reviewed_at, :tracking_eta, :tracking_location, :receipt_number, :receipt_issued_at,
			:shipping_address, :shipping_coordinates, :installment, 1, :created_at, :updated_at)
		RETURNING id, version`

	rows, err := s.db.NamedQueryContext(ctx, query, b)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, b.OrderID)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicate, b.OrderID)
			}
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return fmt.Errorf("failed to insert booking: no row returned")
	}
	return rows.Scan(&b.ID, &b.Version)
}

// GetBooking retrieves a booking by order id
func (s *Store) GetBooking(ctx context.Context, orderID string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, "SELECT "+bookingColumns+" FROM bookings WHERE order_id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings retrieves bookings newest first
func (s *Store) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	var where []string
	var args []interface{}

	if filter.OwnerEmail != "" {
		where = append(where, "lower(owner_email) = lower(?)")
		args = append(args, filter.OwnerEmail)
	}
	if filter.ScheduleDate != "" {
		where = append(where, "schedule_date = ?")
		args = append(args, filter.ScheduleDate)
	}
	if filter.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, string(filter.Stage))
	}

	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings, s.db.Rebind(query), args...)
	return bookings, err
}

// CountActiveOnDate counts bookings on date that are neither rejected nor
// cancelled, ignoring excludeOrderID
func (s *Store) CountActiveOnDate(ctx context.Context, date, excludeOrderID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE schedule_date = $1
		  AND stage NOT IN ('rejected', 'cancelled')
		  AND review_decision <> 'rejected'
		  AND order_id <> $2`,
		date, excludeOrderID)
	return count, err
}

// UpdateBooking writes b only if the stored version still equals b.Version,
// then advances b.Version
func (s *Store) UpdateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		UPDATE bookings SET
			owner_email = :owner_email, full_name = :full_name, phone = :phone, model = :model,
			color_variant = :color_variant, unit_image_ref = :unit_image_ref,
			subtotal = :subtotal, shipping_fee = :shipping_fee, total = :total,
			payment_method = :payment_method, payment_status = :payment_status, service_type = :service_type,
			schedule_date = :schedule_date, schedule_time = :schedule_time,
			status = :status, fulfillment_status = :fulfillment_status, stage = :stage,
			review_decision = :review_decision, reviewed_at = :reviewed_at,
			tracking_eta = :tracking_eta, tracking_location = :tracking_location,
			receipt_number = :receipt_number, receipt_issued_at = :receipt_issued_at,
			shipping_address = :shipping_address, shipping_coordinates = :shipping_coordinates,
			installment = :installment, updated_at = :updated_at, version = version + 1
		WHERE order_id = :order_id AND version = :version`

	res, err := s.db.NamedExecContext(ctx, query, b)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetBooking(ctx, b.OrderID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrStale, b.OrderID)
	}

	b.Version++
	return nil
}

// BackfillStages classifies legacy free-text labels into the stage column
func (s *Store) BackfillStages(ctx context.Context) (int, error) {
	type legacyRow struct {
		OrderID           string `db:"order_id"`
		Status            string `db:"status"`
		FulfillmentStatus string `db:"fulfillment_status"`
	}

	var rows []legacyRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT order_id, status, fulfillment_status FROM bookings WHERE stage = ''"); err != nil {
		return 0, fmt.Errorf("failed to load legacy bookings: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, row := range rows {
		stage := models.ClassifyLegacy(row.Status, row.FulfillmentStatus)
		if _, err := tx.ExecContext(ctx,
			"UPDATE bookings SET stage = $1, review_decision = $2 WHERE order_id = $3 AND stage = ''",
			string(stage), string(stage.Decision()), row.OrderID); err != nil {
			return 0, fmt.Errorf("failed to backfill stage for %s: %w", row.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
