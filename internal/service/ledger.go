package service

import (
	"time"

	"ebike-booking/internal/models"

	"github.com/shopspring/decimal"
)

// LedgerView is the reconciled installment position of one booking. Every
// caller (customer summary, admin console, receipts) reads it from here.
type LedgerView struct {
	OrderID                 string          `json:"orderId"`
	MonthsToPay             int             `json:"monthsToPay"`
	MonthlyAmortization     decimal.Decimal `json:"monthlyAmortization"`
	DownPayment             decimal.Decimal `json:"downPayment"`
	MinDownPayment          decimal.Decimal `json:"minDownPayment"`
	PaidCount               int             `json:"paidCount"`
	PaidAmount              decimal.Decimal `json:"paidAmount"`
	TotalInstallmentPayable decimal.Decimal `json:"totalInstallmentPayable"`
	OutstandingBalance      decimal.Decimal `json:"outstandingBalance"`
	TotalPayableForReceipt  decimal.Decimal `json:"totalPayableForReceipt"`
	Schedule                []ScheduleRow   `json:"schedule"`
}

// ScheduleRow is one month of the printable schedule
type ScheduleRow struct {
	Month   int             `json:"month"`
	DueDate string          `json:"dueDate"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
}

const (
	ScheduleStatusPaid    = "Paid"
	ScheduleStatusPending = "Pending"
)

// ResolveLedger reconstructs the plan from whatever the booking carries.
// For each figure the first non-zero source wins.
func ResolveLedger(b *models.Booking, now time.Time) LedgerView {
	view := LedgerView{OrderID: b.OrderID}
	plan := b.Installment
	if plan == nil {
		plan = &models.InstallmentPlan{}
	}

	view.MonthsToPay = plan.MonthsToPay
	if view.MonthsToPay < 0 {
		view.MonthsToPay = 0
	}
	view.DownPayment = nonNegative(plan.DownPayment).Round(2)
	view.MinDownPayment = nonNegative(plan.MinDownPayment).Round(2)
	total := nonNegative(b.Total)

	view.MonthlyAmortization = nonNegative(plan.MonthlyAmortization)
	if view.MonthlyAmortization.IsZero() && view.MonthsToPay > 0 && total.IsPositive() {
		financed := nonNegative(total.Sub(view.DownPayment))
		view.MonthlyAmortization = financed.Div(decimal.NewFromInt(int64(view.MonthsToPay)))
	}
	view.MonthlyAmortization = view.MonthlyAmortization.Round(2)

	historyPaid := 0
	historySum := decimal.Zero
	for _, e := range plan.PaymentHistory {
		if e.IsPaid() {
			historyPaid++
			historySum = historySum.Add(nonNegative(e.Amount))
		}
	}
	view.PaidCount = plan.PaidInstallments
	if historyPaid > view.PaidCount {
		view.PaidCount = historyPaid
	}
	if view.PaidCount < 0 {
		view.PaidCount = 0
	}
	if view.MonthsToPay > 0 && view.PaidCount > view.MonthsToPay {
		view.PaidCount = view.MonthsToPay
	}

	switch {
	case plan.TotalPaid.IsPositive():
		view.PaidAmount = plan.TotalPaid
	case historySum.IsPositive():
		view.PaidAmount = historySum
	default:
		view.PaidAmount = view.MonthlyAmortization.Mul(decimal.NewFromInt(int64(view.PaidCount)))
	}
	view.PaidAmount = view.PaidAmount.Round(2)

	switch {
	case view.MonthlyAmortization.IsPositive() && view.MonthsToPay > 0:
		view.TotalInstallmentPayable = view.MonthlyAmortization.Mul(decimal.NewFromInt(int64(view.MonthsToPay)))
	case total.Sub(view.DownPayment).IsPositive():
		view.TotalInstallmentPayable = total.Sub(view.DownPayment)
	default:
		view.TotalInstallmentPayable = total
	}
	view.TotalInstallmentPayable = view.TotalInstallmentPayable.Round(2)

	view.OutstandingBalance = nonNegative(view.TotalInstallmentPayable.Sub(view.PaidAmount)).Round(2)

	view.TotalPayableForReceipt = view.TotalInstallmentPayable.Add(view.DownPayment)
	if !view.TotalPayableForReceipt.IsPositive() {
		view.TotalPayableForReceipt = view.TotalInstallmentPayable
	}

	view.Schedule = buildSchedule(scheduleBase(b, now), view)
	return view
}

// scheduleBase is the schedule date, else the creation time, else now
func scheduleBase(b *models.Booking, now time.Time) time.Time {
	if b.ScheduleDate != nil {
		if d, err := time.Parse(dateLayout, *b.ScheduleDate); err == nil {
			return d
		}
	}
	if !b.CreatedAt.IsZero() {
		return b.CreatedAt
	}
	return now
}

// buildSchedule lays out one row per month. AddDate normalises overflow, so
// Jan 31 + 1 month falls on Mar 2 or 3.
func buildSchedule(base time.Time, view LedgerView) []ScheduleRow {
	rows := make([]ScheduleRow, 0, view.MonthsToPay)
	for i := 0; i < view.MonthsToPay; i++ {
		status := ScheduleStatusPending
		if i < view.PaidCount {
			status = ScheduleStatusPaid
		}
		rows = append(rows, ScheduleRow{
			Month:   i + 1,
			DueDate: base.AddDate(0, i, 0).Format(dateLayout),
			Amount:  view.MonthlyAmortization,
			Status:  status,
		})
	}
	return rows
}

// applyMonthPaid records month as paid on b's plan. It reports whether any
// stored figure changed; re-marking a month already counted changes nothing.
func applyMonthPaid(b *models.Booking, month int, now time.Time) (bool, error) {
	view := ResolveLedger(b, now)
	if view.MonthsToPay == 0 {
		return false, validationError("month_out_of_range", "booking %s has no installment term to pay against", b.OrderID)
	}
	if month < 1 || month > view.MonthsToPay {
		return false, validationError("month_out_of_range", "month must be between 1 and %d", view.MonthsToPay)
	}

	plan := b.Installment
	changed := false

	entryIdx := -1
	for i, e := range plan.PaymentHistory {
		if e.Month == month {
			entryIdx = i
			break
		}
	}
	if entryIdx < 0 {
		paidAt := now
		plan.PaymentHistory = append(plan.PaymentHistory, models.PaymentEntry{
			Month: month, Amount: view.MonthlyAmortization, Status: ScheduleStatusPaid, PaidAt: &paidAt,
		})
		changed = true
	} else if !plan.PaymentHistory[entryIdx].IsPaid() {
		paidAt := now
		plan.PaymentHistory[entryIdx].Status = ScheduleStatusPaid
		plan.PaymentHistory[entryIdx].PaidAt = &paidAt
		if !plan.PaymentHistory[entryIdx].Amount.IsPositive() {
			plan.PaymentHistory[entryIdx].Amount = view.MonthlyAmortization
		}
		changed = true
	}

	newCount := view.PaidCount
	if month > newCount {
		newCount = month
	}
	paid := view.PaidAmount.Add(view.MonthlyAmortization.Mul(decimal.NewFromInt(int64(newCount - view.PaidCount)))).Round(2)

	if plan.PaidInstallments != newCount || !plan.TotalPaid.Equal(paid) {
		changed = true
	}
	plan.PaidInstallments = newCount
	plan.TotalPaid = paid
	if plan.MonthlyAmortization.IsZero() {
		plan.MonthlyAmortization = view.MonthlyAmortization
	}
	plan.OutstandingBalance = nonNegative(view.TotalInstallmentPayable.Sub(plan.TotalPaid)).Round(2)

	if newCount == view.MonthsToPay && b.PaymentStatus != models.PaymentStatusPaid {
		b.PaymentStatus = models.PaymentStatusPaid
		changed = true
	}
	return changed, nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
