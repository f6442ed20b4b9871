package models

import (
	"strings"
	"unicode"
)

// completionPhrases mark a fulfillment label as finished.
var completionPhrases = []string{"delivered", "completed", "complete", "picked up", "pickedup", "released"}

// NormalizeLabel lowercases s and collapses every run of non-alphanumerics into one space.
func NormalizeLabel(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func containsWords(norm, phrase string) bool {
	return strings.Contains(" "+norm+" ", " "+phrase+" ")
}

// IsCompletionLabel reports whether a fulfillment label means the unit reached
// the customer. Whole words only, and "not ..." labels never complete.
func IsCompletionLabel(label string) bool {
	norm := NormalizeLabel(label)
	if norm == "" || containsWords(norm, "not") {
		return false
	}
	for _, phrase := range completionPhrases {
		if containsWords(norm, phrase) {
			return true
		}
	}
	return false
}

// IsPlaceholderFulfillment reports whether a label is still an intake placeholder
// that approval should replace.
func IsPlaceholderFulfillment(label string) bool {
	norm := NormalizeLabel(label)
	if norm == "" {
		return true
	}
	for _, marker := range []string{"pending", "review", "in process", "processing", "for approval"} {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}

// ClassifyLegacy maps free-text status/fulfillment labels written before the
// stage column existed onto a Stage. It is only used for migration and for
// labels supplied at intake; transitions read Stage directly.
func ClassifyLegacy(status, fulfillment string) Stage {
	s := NormalizeLabel(status)
	f := NormalizeLabel(fulfillment)
	hasAny := func(markers ...string) bool {
		for _, m := range markers {
			if strings.Contains(s, m) || strings.Contains(f, m) {
				return true
			}
		}
		return false
	}

	switch {
	case hasAny("cancel"):
		return StageCancelled
	case hasAny("reject", "declin", "denied"):
		return StageRejected
	case IsCompletionLabel(status) || IsCompletionLabel(fulfillment):
		return StageCompleted
	case strings.Contains(s, "approv") || strings.Contains(s, "confirm") || strings.Contains(s, "accept"):
		return StageApproved
	default:
		return StagePendingReview
	}
}
