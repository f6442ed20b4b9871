package service

import (
	"testing"

	"ebike-booking/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMergeAuthoritativeWins(t *testing.T) {
	cached := &models.Booking{
		OrderID:       "EB-1",
		Status:        models.StatusPendingReview,
		ColorVariant:  "Red",
		UnitImageRef:  "red.png",
		PaymentStatus: models.PaymentStatusPendingCOD,
	}
	authoritative := &models.Booking{
		OrderID:       "EB-1",
		Status:        models.StatusApproved,
		Model:         "ECONO350 MINI-II",
		PaymentStatus: models.PaymentStatusPaid,
	}

	merged := Merge(cached, authoritative)
	assert.Equal(t, models.StatusApproved, merged.Status)
	assert.Equal(t, models.PaymentStatusPaid, merged.PaymentStatus)
	assert.Equal(t, "Red", merged.ColorVariant)
	assert.Equal(t, "red.png", merged.UnitImageRef)
	assert.Equal(t, "ECONO350 MINI-II", merged.Model)

	// inputs are untouched
	assert.Empty(t, authoritative.ColorVariant)
}

func TestMergeKeepsAuthoritativeColor(t *testing.T) {
	merged := Merge(&models.Booking{ColorVariant: "Red"}, &models.Booking{ColorVariant: "Blue"})
	assert.Equal(t, "Blue", merged.ColorVariant)
}

func TestMergeNilSides(t *testing.T) {
	only := &models.Booking{OrderID: "EB-1"}
	assert.Equal(t, "EB-1", Merge(nil, only).OrderID)
	assert.Equal(t, "EB-1", Merge(only, nil).OrderID)
	assert.Nil(t, Merge(nil, nil))
}
