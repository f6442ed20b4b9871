package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "picked up", NormalizeLabel("  Picked-Up! "))
	assert.Equal(t, "econo350 mini ii", NormalizeLabel("ECONO350 MINI-II"))
	assert.Equal(t, "", NormalizeLabel(" -- "))
}

func TestIsCompletionLabel(t *testing.T) {
	cases := map[string]bool{
		"Delivered":              true,
		"Order Completed":        true,
		"Picked up by customer":  true,
		"Unit released":          true,
		"Ready to Pick up":       false,
		"Preparing for Release":  false,
		"Not yet delivered":      false,
		"In Process":             false,
		"":                       false,
		"completed-successfully": true,
	}
	for label, want := range cases {
		assert.Equal(t, want, IsCompletionLabel(label), label)
	}
}

func TestIsPlaceholderFulfillment(t *testing.T) {
	assert.True(t, IsPlaceholderFulfillment(""))
	assert.True(t, IsPlaceholderFulfillment("In Process"))
	assert.True(t, IsPlaceholderFulfillment("Under Review"))
	assert.True(t, IsPlaceholderFulfillment("Pending"))
	assert.False(t, IsPlaceholderFulfillment("Ready to Pick up"))
	assert.False(t, IsPlaceholderFulfillment("Preparing for Dispatch"))
}

func TestClassifyLegacy(t *testing.T) {
	assert.Equal(t, StagePendingReview, ClassifyLegacy("Pending review", "In Process"))
	assert.Equal(t, StagePendingReview, ClassifyLegacy("Application Review", "Under Review"))
	assert.Equal(t, StageApproved, ClassifyLegacy("Approved", "Preparing for Dispatch"))
	assert.Equal(t, StageCompleted, ClassifyLegacy("Approved", "Delivered"))
	assert.Equal(t, StageCompleted, ClassifyLegacy("Completed", ""))
	assert.Equal(t, StageRejected, ClassifyLegacy("Rejected", "Rejected"))
	assert.Equal(t, StageRejected, ClassifyLegacy("Declined", ""))
	assert.Equal(t, StageCancelled, ClassifyLegacy("Cancelled", "Cancelled"))
}
