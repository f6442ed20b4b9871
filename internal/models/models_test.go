package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageDecision(t *testing.T) {
	assert.Equal(t, ReviewDecisionNone, StagePendingReview.Decision())
	assert.Equal(t, ReviewDecisionApproved, StageApproved.Decision())
	assert.Equal(t, ReviewDecisionApproved, StageCompleted.Decision())
	assert.Equal(t, ReviewDecisionRejected, StageRejected.Decision())
	assert.Equal(t, ReviewDecisionRejected, StageCancelled.Decision())

	assert.True(t, StageCancelled.Terminal())
	assert.False(t, StageCompleted.Terminal())
}

func TestPaymentEntryIsPaid(t *testing.T) {
	assert.True(t, PaymentEntry{Status: "Paid"}.IsPaid())
	assert.True(t, PaymentEntry{Status: "paid_in_full"}.IsPaid())
	assert.False(t, PaymentEntry{Status: "Unpaid"}.IsPaid())
	assert.False(t, PaymentEntry{Status: "Pending"}.IsPaid())
}

func TestInstallmentPlanScanFromJSONB(t *testing.T) {
	var plan InstallmentPlan
	err := plan.Scan([]byte(`{"monthsToPay":12,"monthlyAmortization":4098,"paymentHistory":[{"month":1,"amount":"4098.00","status":"Paid"}]}`))
	require.NoError(t, err)

	assert.Equal(t, 12, plan.MonthsToPay)
	assert.True(t, plan.MonthlyAmortization.Equal(decimal.NewFromInt(4098)))
	require.Len(t, plan.PaymentHistory, 1)
	assert.True(t, plan.PaymentHistory[0].IsPaid())
}

func TestBookingCloneIsDeep(t *testing.T) {
	date := "2025-05-01"
	b := &Booking{
		OrderID:      "EB-1",
		ScheduleDate: &date,
		Installment: &InstallmentPlan{
			PaymentHistory: []PaymentEntry{{Month: 1, Status: "Paid"}},
		},
	}

	c := b.Clone()
	*c.ScheduleDate = "2025-06-01"
	c.Installment.PaymentHistory[0].Status = "Pending"

	assert.Equal(t, "2025-05-01", *b.ScheduleDate)
	assert.Equal(t, "Paid", b.Installment.PaymentHistory[0].Status)
}

func TestIdentityOwns(t *testing.T) {
	id := Identity{Email: "Jane@Example.com"}
	assert.True(t, id.Owns("jane@example.com"))
	assert.False(t, id.Owns("john@example.com"))
	assert.False(t, Identity{}.Owns(""))
}
