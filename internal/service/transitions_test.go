package service

import (
	"context"
	"testing"

	"ebike-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestApproveIssuesReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	approved, err := env.svc.Approve(ctx, adminUser, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, models.StageApproved, approved.Stage)
	assert.Equal(t, models.ReviewDecisionApproved, approved.ReviewDecision)
	assert.Equal(t, models.FulfillmentPreparingDispatch, approved.FulfillmentStatus)
	require.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, "ECR-20250420-"+lastAlnum(b.OrderID, 8), approved.ReceiptNumber)
	require.NotNil(t, approved.ReceiptIssuedAt)

	events := env.publisher.ofType(models.EventTypeBookingApproved)
	require.Len(t, events, 1)
	assert.Equal(t, approved.ReceiptNumber, events[0].ReceiptNumber)

	_, err = env.svc.Approve(ctx, adminUser, b.OrderID)
	requireKind(t, err, ErrConflict, "already_reviewed")
}

func TestApproveRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	b := env.createPending(t)

	_, err := env.svc.Approve(context.Background(), janeUser, b.OrderID)
	requireKind(t, err, ErrIdentityMismatch, "")

	_, err = env.svc.Approve(context.Background(), adminUser, "EB-MISSING")
	requireKind(t, err, ErrNotFound, "")
}

func TestApproveKeepsPickUpLabel(t *testing.T) {
	env := newTestEnv(t)
	d := scenarioDraft(t)
	d.ServiceType = "Pick Up"
	b, _, err := env.svc.CreateBooking(context.Background(), janeUser, d, "")
	require.NoError(t, err)

	approved, err := env.svc.Approve(context.Background(), adminUser, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.FulfillmentReadyToPickUp, approved.FulfillmentStatus)
}

func TestRejectTwiceIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	first, err := env.svc.Reject(ctx, adminUser, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, first.Status)
	assert.Equal(t, models.StatusRejected, first.FulfillmentStatus)
	assert.Equal(t, models.ReviewDecisionRejected, first.ReviewDecision)

	second, err := env.svc.Reject(ctx, adminUser, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version, "no field may change")
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	assert.Len(t, env.publisher.ofType(models.EventTypeBookingRejected), 1)
}

func TestRejectAfterApproveConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	_, err := env.svc.Approve(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	_, err = env.svc.Reject(ctx, adminUser, b.OrderID)
	requireKind(t, err, ErrConflict, "already_reviewed")
}

func TestRejectedBookingIsFrozen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	rejected, err := env.svc.Reject(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, adminUser, b.OrderID)
	requireKind(t, err, ErrConflict, "booking_terminal")
	_, err = env.svc.ProgressFulfillment(ctx, adminUser, b.OrderID, FulfillmentUpdate{FulfillmentStatus: "Delivered"})
	requireKind(t, err, ErrConflict, "booking_terminal")
	_, err = env.svc.Cancel(ctx, janeUser, b.OrderID)
	requireKind(t, err, ErrConflict, "booking_terminal")

	_, err = env.svc.SetPaymentStatus(ctx, adminUser, b.OrderID, "refunded")
	require.NoError(t, err)

	after, err := env.repo.GetBooking(ctx, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, rejected.Status, after.Status)
	assert.Equal(t, rejected.FulfillmentStatus, after.FulfillmentStatus)
	assert.Equal(t, rejected.ReviewDecision, after.ReviewDecision)
	assert.Empty(t, after.ReceiptNumber)
}

func TestProgressFulfillmentRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	_, err := env.svc.ProgressFulfillment(ctx, adminUser, b.OrderID, FulfillmentUpdate{FulfillmentStatus: "Out for delivery"})
	requireKind(t, err, ErrConflict, "approve_first")

	after, err := env.repo.GetBooking(ctx, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, b.Version, after.Version)
	assert.Equal(t, models.FulfillmentInProcess, after.FulfillmentStatus)
}

func TestProgressFulfillmentToCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)
	_, err := env.svc.Approve(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	moving, err := env.svc.ProgressFulfillment(ctx, adminUser, b.OrderID, FulfillmentUpdate{
		FulfillmentStatus: "Out for delivery",
		TrackingETA:       strPtr("2025-05-01 14:00"),
		TrackingLocation:  strPtr("Released from Quezon City hub"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, moving.Status, "location text never completes a booking")
	assert.Equal(t, "Released from Quezon City hub", moving.TrackingLocation)

	done, err := env.svc.ProgressFulfillment(ctx, adminUser, b.OrderID, FulfillmentUpdate{FulfillmentStatus: "Delivered"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, models.StageCompleted, done.Stage)
	assert.Equal(t, "2025-05-01 14:00", done.TrackingETA)
	assert.Equal(t, moving.ReceiptNumber, done.ReceiptNumber)

	_, err = env.svc.ProgressFulfillment(ctx, adminUser, b.OrderID, FulfillmentUpdate{FulfillmentStatus: " "})
	requireKind(t, err, ErrValidation, "invalid_fulfillment_status")
}

func TestSetPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	updated, err := env.svc.SetPaymentStatus(ctx, adminUser, b.OrderID, "PAID")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, models.StatusPendingReview, updated.Status)
	assert.Equal(t, models.ReviewDecisionNone, updated.ReviewDecision)

	again, err := env.svc.SetPaymentStatus(ctx, adminUser, b.OrderID, "paid")
	require.NoError(t, err)
	assert.Equal(t, updated.Version, again.Version)
	assert.Len(t, env.publisher.ofType(models.EventTypePaymentStatusChanged), 1)

	_, err = env.svc.SetPaymentStatus(ctx, adminUser, b.OrderID, "gcash_paid")
	requireKind(t, err, ErrValidation, "invalid_payment_status")
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	_, err := env.svc.Cancel(ctx, models.Identity{Email: "stranger@b.com"}, b.OrderID)
	requireKind(t, err, ErrIdentityMismatch, "")

	cancelled, err := env.svc.Cancel(ctx, janeUser, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, models.StatusCancelled, cancelled.FulfillmentStatus)
	assert.Equal(t, models.ReviewDecisionRejected, cancelled.ReviewDecision)
	require.NotNil(t, cancelled.ReviewedAt)

	_, err = env.svc.Cancel(ctx, adminUser, b.OrderID)
	requireKind(t, err, ErrConflict, "booking_terminal")

	// rejecting a cancelled booking is the idempotent no-op
	_, err = env.svc.Reject(ctx, adminUser, b.OrderID)
	require.NoError(t, err)
	assert.Empty(t, env.publisher.ofType(models.EventTypeBookingRejected))
}

func TestCancelApprovedByAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)
	_, err := env.svc.Approve(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, adminUser, b.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StageCancelled, cancelled.Stage)
	assert.NotEmpty(t, cancelled.ReceiptNumber, "receipts are never withdrawn")
}

func TestStaleUpdateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	stale := b.Clone()
	_, err := env.svc.Approve(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	stale.Status = "tampered"
	err = env.svc.save(ctx, "test", stale)
	requireKind(t, err, ErrConflict, "concurrent_update")
}

func TestEnsureReceiptIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createPending(t)

	_, err := env.svc.EnsureReceipt(ctx, adminUser, b.OrderID)
	requireKind(t, err, ErrConflict, "approve_first")

	approved, err := env.svc.Approve(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	first, err := env.svc.EnsureReceipt(ctx, janeUser, b.OrderID)
	require.NoError(t, err)
	second, err := env.svc.EnsureReceipt(ctx, adminUser, b.OrderID)
	require.NoError(t, err)

	assert.Equal(t, approved.ReceiptNumber, first.ReceiptNumber)
	assert.Equal(t, first.ReceiptNumber, second.ReceiptNumber)
	assert.Equal(t, approved.Version, second.Version)
}
