package service

import (
	"context"
	"errors"
	"strings"

	"ebike-booking/internal/models"
	"ebike-booking/internal/util"

	"go.uber.org/zap"
)

// FulfillmentUpdate is an admin progress report
type FulfillmentUpdate struct {
	FulfillmentStatus string  `json:"fulfillmentStatus"`
	TrackingETA       *string `json:"trackingEta,omitempty"`
	TrackingLocation  *string `json:"trackingLocation,omitempty"`
}

// Approve moves a pending booking to approved and issues its receipt
func (s *BookingService) Approve(ctx context.Context, actor models.Identity, orderID string) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.Approve", orderID)
	defer span.End()

	if !actor.IsAdmin() {
		return nil, forbiddenError("only admins can approve bookings")
	}

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch b.Stage {
	case models.StagePendingReview:
	case models.StageRejected, models.StageCancelled:
		return nil, s.refuse("approve", conflictError("booking_terminal", "booking %s is already %s", orderID, b.Stage))
	default:
		return nil, s.refuse("approve", conflictError("already_reviewed", "booking %s was already approved", orderID))
	}

	now := s.now()
	b.Stage = models.StageApproved
	b.ReviewDecision = models.ReviewDecisionApproved
	b.Status = models.StatusApproved
	if models.IsPlaceholderFulfillment(b.FulfillmentStatus) {
		b.FulfillmentStatus = approvedFulfillment(b.ServiceType)
	}
	b.ReviewedAt = &now
	b.UpdatedAt = now
	s.receipts.Ensure(b, now)

	if err := s.save(ctx, "approve", b); err != nil {
		return nil, err
	}

	s.logger.Info("Booking approved",
		zap.String("order_id", orderID),
		zap.String("receipt_number", b.ReceiptNumber),
		zap.String("admin", actor.Email))
	s.publish(ctx, models.EventTypeBookingApproved, b, actor, 0)
	return b, nil
}

// Reject moves a pending booking to rejected. Rejecting an already rejected
// booking succeeds without changes or a second notification.
func (s *BookingService) Reject(ctx context.Context, actor models.Identity, orderID string) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.Reject", orderID)
	defer span.End()

	if !actor.IsAdmin() {
		return nil, forbiddenError("only admins can reject bookings")
	}

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if b.Stage.Terminal() {
		util.BookingTransitionsTotal.WithLabelValues("reject", "noop").Inc()
		return b, nil
	}
	if b.Stage != models.StagePendingReview {
		return nil, s.refuse("reject", conflictError("already_reviewed", "booking %s was already approved", orderID))
	}

	now := s.now()
	b.Stage = models.StageRejected
	b.ReviewDecision = models.ReviewDecisionRejected
	b.Status = models.StatusRejected
	b.FulfillmentStatus = models.StatusRejected
	b.ReviewedAt = &now
	b.UpdatedAt = now

	if err := s.save(ctx, "reject", b); err != nil {
		// a concurrent reject that won the race is still a success
		if errors.Is(err, ErrConflict) {
			if current, loadErr := s.load(ctx, orderID); loadErr == nil && current.Stage.Terminal() {
				return current, nil
			}
		}
		return nil, err
	}

	s.logger.Info("Booking rejected", zap.String("order_id", orderID), zap.String("admin", actor.Email))
	s.publish(ctx, models.EventTypeBookingRejected, b, actor, 0)
	return b, nil
}

// ProgressFulfillment records delivery progress on an approved booking
func (s *BookingService) ProgressFulfillment(ctx context.Context, actor models.Identity, orderID string, update FulfillmentUpdate) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.ProgressFulfillment", orderID)
	defer span.End()

	if !actor.IsAdmin() {
		return nil, forbiddenError("only admins can update fulfillment")
	}
	label := strings.TrimSpace(update.FulfillmentStatus)
	if label == "" {
		return nil, validationError("invalid_fulfillment_status", "fulfillmentStatus is required")
	}

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch b.Stage {
	case models.StageApproved, models.StageCompleted:
	case models.StageRejected, models.StageCancelled:
		return nil, s.refuse("fulfillment", conflictError("booking_terminal", "booking %s is already %s", orderID, b.Stage))
	default:
		return nil, s.refuse("fulfillment", conflictError("approve_first", "approve booking %s before updating fulfillment", orderID))
	}

	now := s.now()
	b.FulfillmentStatus = label
	if update.TrackingETA != nil {
		b.TrackingETA = strings.TrimSpace(*update.TrackingETA)
	}
	if update.TrackingLocation != nil {
		b.TrackingLocation = strings.TrimSpace(*update.TrackingLocation)
	}
	if models.IsCompletionLabel(label) {
		b.Stage = models.StageCompleted
		b.Status = models.StatusCompleted
	} else {
		b.Stage = models.StageApproved
		b.Status = models.StatusApproved
	}
	b.UpdatedAt = now
	s.receipts.Ensure(b, now)

	if err := s.save(ctx, "fulfillment", b); err != nil {
		return nil, err
	}

	s.logger.Info("Booking fulfillment updated",
		zap.String("order_id", orderID),
		zap.String("fulfillment_status", label),
		zap.String("stage", string(b.Stage)))
	s.publish(ctx, models.EventTypeFulfillmentUpdated, b, actor, 0)
	return b, nil
}

// SetPaymentStatus changes only the payment status
func (s *BookingService) SetPaymentStatus(ctx context.Context, actor models.Identity, orderID, status string) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.SetPaymentStatus", orderID)
	defer span.End()

	if !actor.IsAdmin() {
		return nil, forbiddenError("only admins can set payment status")
	}
	ps := models.PaymentStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ps.Valid() {
		return nil, validationError("invalid_payment_status", "paymentStatus must be one of %v", models.PaymentStatuses)
	}

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == ps {
		util.BookingTransitionsTotal.WithLabelValues("payment_status", "noop").Inc()
		return b, nil
	}

	b.PaymentStatus = ps
	b.UpdatedAt = s.now()
	if err := s.save(ctx, "payment_status", b); err != nil {
		return nil, err
	}

	s.logger.Info("Booking payment status changed",
		zap.String("order_id", orderID),
		zap.String("payment_status", string(ps)))
	s.publish(ctx, models.EventTypePaymentStatusChanged, b, actor, 0)
	return b, nil
}

// Cancel is the owner's (or an admin's) withdrawal of a booking
func (s *BookingService) Cancel(ctx context.Context, actor models.Identity, orderID string) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.Cancel", orderID)
	defer span.End()

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(b.OwnerEmail) {
		return nil, forbiddenError("only the owner or an admin can cancel this booking")
	}
	switch b.Stage {
	case models.StagePendingReview, models.StageApproved:
	case models.StageCompleted:
		return nil, s.refuse("cancel", conflictError("booking_completed", "booking %s is already completed", orderID))
	default:
		return nil, s.refuse("cancel", conflictError("booking_terminal", "booking %s is already %s", orderID, b.Stage))
	}

	now := s.now()
	b.Stage = models.StageCancelled
	b.ReviewDecision = models.ReviewDecisionRejected
	b.Status = models.StatusCancelled
	b.FulfillmentStatus = models.StatusCancelled
	b.ReviewedAt = &now
	b.UpdatedAt = now

	if err := s.save(ctx, "cancel", b); err != nil {
		return nil, err
	}

	s.logger.Info("Booking cancelled", zap.String("order_id", orderID), zap.String("actor", actor.Email))
	s.publish(ctx, models.EventTypeBookingCancelled, b, actor, 0)
	return b, nil
}

// MarkMonthPaid records one installment month as paid
func (s *BookingService) MarkMonthPaid(ctx context.Context, actor models.Identity, orderID string, month int) (*models.Booking, *LedgerView, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.MarkMonthPaid", orderID)
	defer span.End()

	if !actor.IsAdmin() {
		return nil, nil, forbiddenError("only admins can record installment payments")
	}

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !b.IsInstallment() {
		return nil, nil, s.refuse("mark_paid", conflictError("not_installment", "booking %s is not an installment booking", orderID))
	}
	if b.Stage.Terminal() {
		return nil, nil, s.refuse("mark_paid", conflictError("booking_terminal", "booking %s is already %s", orderID, b.Stage))
	}
	if b.Installment == nil {
		b.Installment = &models.InstallmentPlan{}
	}

	now := s.now()
	changed, err := applyMonthPaid(b, month, now)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		b.UpdatedAt = now
		if err := s.save(ctx, "mark_paid", b); err != nil {
			return nil, nil, err
		}
		util.InstallmentPaymentsMarkedTotal.Inc()
		s.logger.Info("Installment month marked paid",
			zap.String("order_id", orderID),
			zap.Int("month", month),
			zap.Int("paid_installments", b.Installment.PaidInstallments))
		s.publish(ctx, models.EventTypeInstallmentPaymentMarked, b, actor, month)
	}

	view := ResolveLedger(b, now)
	return b, &view, nil
}

// EnsureReceipt returns the receipt of an approved booking, issuing it once
func (s *BookingService) EnsureReceipt(ctx context.Context, actor models.Identity, orderID string) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.EnsureReceipt", orderID)
	defer span.End()

	b, err := s.GetBooking(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if b.Stage != models.StageApproved && b.Stage != models.StageCompleted {
		return nil, s.refuse("receipt", conflictError("approve_first", "booking %s has no receipt until it is approved", orderID))
	}

	if _, _, issued := s.receipts.Ensure(b, s.now()); issued {
		if err := s.save(ctx, "receipt", b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// save writes b guarded by the version it was read at
func (s *BookingService) save(ctx context.Context, action string, b *models.Booking) error {
	if err := s.repo.UpdateBooking(ctx, b); err != nil {
		util.BookingTransitionsTotal.WithLabelValues(action, "error").Inc()
		return storeError(err, b.OrderID)
	}
	util.BookingTransitionsTotal.WithLabelValues(action, "ok").Inc()
	return nil
}

func (s *BookingService) refuse(action string, err *Error) error {
	util.BookingTransitionsTotal.WithLabelValues(action, "refused").Inc()
	return err
}

// approvedFulfillment is the first in-progress label after approval
func approvedFulfillment(service models.ServiceType) string {
	switch service {
	case models.ServiceTypePickUp:
		return models.FulfillmentReadyToPickUp
	case models.ServiceTypeInstallment:
		return models.FulfillmentPreparingRelease
	default:
		return models.FulfillmentPreparingDispatch
	}
}
