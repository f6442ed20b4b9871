package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"ebike-booking/internal/models"
	"ebike-booking/internal/util"

	"github.com/google/uuid"
)

// ReceiptIssuer assigns receipt numbers of the form PREFIX-YYYYMMDD-XXXXXXXX
type ReceiptIssuer struct {
	prefix string
	random func() string
}

// NewReceiptIssuer creates an issuer; an empty prefix means "ECR"
func NewReceiptIssuer(prefix string) *ReceiptIssuer {
	if prefix == "" {
		prefix = "ECR"
	}
	return &ReceiptIssuer{
		prefix: prefix,
		random: func() string {
			return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
		},
	}
}

// Ensure sets the receipt on b unless one already exists. It never
// overwrites; issued reports whether a new number was assigned.
func (r *ReceiptIssuer) Ensure(b *models.Booking, now time.Time) (number string, issuedAt time.Time, issued bool) {
	if b.ReceiptNumber != "" {
		if b.ReceiptIssuedAt != nil {
			issuedAt = *b.ReceiptIssuedAt
		}
		return b.ReceiptNumber, issuedAt, false
	}

	stamp := now
	if b.ReviewedAt != nil {
		stamp = *b.ReviewedAt
	}

	suffix := lastAlnum(b.OrderID, 8)
	if suffix == "" {
		suffix = r.random()
	}

	b.ReceiptNumber = fmt.Sprintf("%s-%s-%s", r.prefix, stamp.Format("20060102"), suffix)
	issuedAt = now
	b.ReceiptIssuedAt = &issuedAt
	util.ReceiptsIssuedTotal.Inc()
	return b.ReceiptNumber, issuedAt, true
}

// lastAlnum returns up to n trailing letters/digits of s, uppercased
func lastAlnum(s string, n int) string {
	var kept []rune
	runes := []rune(s)
	for i := len(runes) - 1; i >= 0 && len(kept) < n; i-- {
		r := runes[i]
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			kept = append(kept, unicode.ToUpper(r))
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return string(kept)
}
