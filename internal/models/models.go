package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// PaymentMethod is the accepted way of settling a booking
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodInstallment    PaymentMethod = "INSTALLMENT"
)

// PaymentStatus values
type PaymentStatus string

const (
	PaymentStatusAwaitingConfirmation PaymentStatus = "awaiting_payment_confirmation"
	PaymentStatusPendingCOD           PaymentStatus = "pending_cod"
	PaymentStatusInstallmentReview    PaymentStatus = "installment_review"
	PaymentStatusPaid                 PaymentStatus = "paid"
	PaymentStatusFailed               PaymentStatus = "failed"
	PaymentStatusRefunded             PaymentStatus = "refunded"
	PaymentStatusNotApplicable        PaymentStatus = "not_applicable"
)

// PaymentStatuses lists every value an admin may set
var PaymentStatuses = []PaymentStatus{
	PaymentStatusAwaitingConfirmation,
	PaymentStatusPendingCOD,
	PaymentStatusInstallmentReview,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusNotApplicable,
}

// Valid reports whether s is one of the enumerated payment statuses
func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ServiceType is how the unit reaches the customer
type ServiceType string

const (
	ServiceTypeDelivery    ServiceType = "Delivery"
	ServiceTypePickUp      ServiceType = "Pick Up"
	ServiceTypeInstallment ServiceType = "Installment"
)

// ReviewDecision is the coarse admin verdict
type ReviewDecision string

const (
	ReviewDecisionNone     ReviewDecision = "none"
	ReviewDecisionApproved ReviewDecision = "approved"
	ReviewDecisionRejected ReviewDecision = "rejected"
)

// Stage is the explicit lifecycle state kept next to the display labels
type Stage string

const (
	StagePendingReview Stage = "pending_review"
	StageApproved      Stage = "approved"
	StageCompleted     Stage = "completed"
	StageRejected      Stage = "rejected"
	StageCancelled     Stage = "cancelled"
)

// Terminal reports whether no review transition can leave the stage
func (s Stage) Terminal() bool {
	return s == StageRejected || s == StageCancelled
}

// Decision derives the review decision summarised by the stage
func (s Stage) Decision() ReviewDecision {
	switch s {
	case StageApproved, StageCompleted:
		return ReviewDecisionApproved
	case StageRejected, StageCancelled:
		return ReviewDecisionRejected
	default:
		return ReviewDecisionNone
	}
}

// Display labels
const (
	StatusPendingReview     = "Pending review"
	StatusApplicationReview = "Application Review"
	StatusApproved          = "Approved"
	StatusRejected          = "Rejected"
	StatusCancelled         = "Cancelled"
	StatusCompleted         = "Completed"

	FulfillmentInProcess         = "In Process"
	FulfillmentReadyToPickUp     = "Ready to Pick up"
	FulfillmentUnderReview       = "Under Review"
	FulfillmentPreparingDispatch = "Preparing for Dispatch"
	FulfillmentPreparingRelease  = "Preparing for Release"
)

// Booking is a reservation of one e-bike unit by one customer
type Booking struct {
	ID                  int64            `db:"id" json:"-"`
	OrderID             string           `db:"order_id" json:"orderId"`
	OwnerEmail          string           `db:"owner_email" json:"email"`
	FullName            string           `db:"full_name" json:"fullName"`
	Phone               string           `db:"phone" json:"phone"`
	Model               string           `db:"model" json:"model"`
	ColorVariant        string           `db:"color_variant" json:"color,omitempty"`
	UnitImageRef        string           `db:"unit_image_ref" json:"image,omitempty"`
	Subtotal            decimal.Decimal  `db:"subtotal" json:"subtotal"`
	ShippingFee         decimal.Decimal  `db:"shipping_fee" json:"shippingFee"`
	Total               decimal.Decimal  `db:"total" json:"total"`
	PaymentMethod       PaymentMethod    `db:"payment_method" json:"paymentMethod,omitempty"`
	PaymentStatus       PaymentStatus    `db:"payment_status" json:"paymentStatus"`
	ServiceType         ServiceType      `db:"service_type" json:"serviceType"`
	ScheduleDate        *string          `db:"schedule_date" json:"scheduleDate,omitempty"`
	ScheduleTime        *string          `db:"schedule_time" json:"scheduleTime,omitempty"`
	Status              string           `db:"status" json:"status"`
	FulfillmentStatus   string           `db:"fulfillment_status" json:"fulfillmentStatus"`
	Stage               Stage            `db:"stage" json:"stage"`
	ReviewDecision      ReviewDecision   `db:"review_decision" json:"reviewDecision"`
	ReviewedAt          *time.Time       `db:"reviewed_at" json:"reviewedAt,omitempty"`
	TrackingETA         string           `db:"tracking_eta" json:"trackingEta,omitempty"`
	TrackingLocation    string           `db:"tracking_location" json:"trackingLocation,omitempty"`
	ReceiptNumber       string           `db:"receipt_number" json:"receiptNumber,omitempty"`
	ReceiptIssuedAt     *time.Time       `db:"receipt_issued_at" json:"receiptIssuedAt,omitempty"`
	ShippingAddress     string           `db:"shipping_address" json:"shippingAddress,omitempty"`
	ShippingCoordinates *Coordinates     `db:"shipping_coordinates" json:"shippingCoordinates,omitempty"`
	Installment         *InstallmentPlan `db:"installment" json:"installment,omitempty"`
	Version             int64            `db:"version" json:"version"`
	CreatedAt           time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.ScheduleDate = cloneString(b.ScheduleDate)
	c.ScheduleTime = cloneString(b.ScheduleTime)
	c.ReviewedAt = cloneTime(b.ReviewedAt)
	c.ReceiptIssuedAt = cloneTime(b.ReceiptIssuedAt)
	if b.ShippingCoordinates != nil {
		coords := *b.ShippingCoordinates
		c.ShippingCoordinates = &coords
	}
	c.Installment = b.Installment.Clone()
	return &c
}

// IsInstallment reports whether the booking belongs to the installment payment family
func (b *Booking) IsInstallment() bool {
	return b.PaymentMethod == PaymentMethodInstallment ||
		b.ServiceType == ServiceTypeInstallment ||
		b.PaymentStatus == PaymentStatusInstallmentReview
}

// InstallmentPlan is the amortization schedule embedded in an installment booking
type InstallmentPlan struct {
	MonthsToPay         int             `json:"monthsToPay"`
	MonthlyAmortization decimal.Decimal `json:"monthlyAmortization"`
	MinDownPayment      decimal.Decimal `json:"minDownPayment"`
	DownPayment         decimal.Decimal `json:"downPayment"`
	SRP                 decimal.Decimal `json:"srp"`
	PaidInstallments    int             `json:"paidInstallments"`
	PaymentHistory      []PaymentEntry  `json:"paymentHistory,omitempty"`
	TotalPaid           decimal.Decimal `json:"totalPaid"`
	OutstandingBalance  decimal.Decimal `json:"outstandingBalance"`
}

// PaymentEntry records one installment month
type PaymentEntry struct {
	Month  int             `json:"month"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
	PaidAt *time.Time      `json:"paidAt,omitempty"`
}

// IsPaid treats any status mentioning "paid" as paid, except "unpaid"
func (e PaymentEntry) IsPaid() bool {
	s := strings.ToLower(e.Status)
	return strings.Contains(s, "paid") && !strings.Contains(s, "unpaid")
}

// Clone returns a deep copy
func (p *InstallmentPlan) Clone() *InstallmentPlan {
	if p == nil {
		return nil
	}
	c := *p
	if p.PaymentHistory != nil {
		c.PaymentHistory = make([]PaymentEntry, len(p.PaymentHistory))
		for i, e := range p.PaymentHistory {
			e.PaidAt = cloneTime(e.PaidAt)
			c.PaymentHistory[i] = e
		}
	}
	return &c
}

// Value stores the plan as JSONB
func (p InstallmentPlan) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan reads the plan from JSONB
func (p *InstallmentPlan) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// Coordinates of the shipping address
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *Coordinates) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// Identity is the verified caller handed over by the identity collaborator
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

const RoleAdmin = "admin"

// IsAdmin reports elevated privilege
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Owns reports whether the identity is the given owner
func (i Identity) Owns(email string) bool {
	return i.Email != "" && strings.EqualFold(strings.TrimSpace(i.Email), strings.TrimSpace(email))
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON source type %T", src)
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
