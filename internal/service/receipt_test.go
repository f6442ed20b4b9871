package service

import (
	"testing"
	"time"

	"ebike-booking/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestReceiptEnsureIsIdempotent(t *testing.T) {
	issuer := NewReceiptIssuer("")
	reviewed := time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC)
	b := &models.Booking{OrderID: "EB-20250420-ab12cd34", ReviewedAt: &reviewed}

	number, issuedAt, issued := issuer.Ensure(b, testNow)
	assert.True(t, issued)
	assert.Equal(t, "ECR-20250502-AB12CD34", number)
	assert.Equal(t, testNow, issuedAt)

	later := testNow.Add(48 * time.Hour)
	again, againAt, issued := issuer.Ensure(b, later)
	assert.False(t, issued)
	assert.Equal(t, number, again)
	assert.Equal(t, issuedAt, againAt)
}

func TestReceiptUsesNowWithoutReview(t *testing.T) {
	issuer := NewReceiptIssuer("RCPT")
	b := &models.Booking{OrderID: "7"}

	number, _, _ := issuer.Ensure(b, testNow)
	assert.Equal(t, "RCPT-20250420-7", number)
}

func TestReceiptRandomFallback(t *testing.T) {
	issuer := NewReceiptIssuer("ECR")
	issuer.random = func() string { return "R4ND0M00" }
	b := &models.Booking{OrderID: "---"}

	number, _, _ := issuer.Ensure(b, testNow)
	assert.Equal(t, "ECR-20250420-R4ND0M00", number)
}

func TestReceiptNeverOverwrites(t *testing.T) {
	issuer := NewReceiptIssuer("ECR")
	b := &models.Booking{OrderID: "EB-X", ReceiptNumber: "LEGACY-001"}

	number, _, issued := issuer.Ensure(b, testNow)
	assert.False(t, issued)
	assert.Equal(t, "LEGACY-001", number)
	assert.Nil(t, b.ReceiptIssuedAt)
}

func TestLastAlnum(t *testing.T) {
	assert.Equal(t, "ABCD1234", lastAlnum("EB-2025-abcd-1234", 8))
	assert.Equal(t, "XY", lastAlnum("x-y", 8))
	assert.Equal(t, "", lastAlnum("ñ--", 8))
}
