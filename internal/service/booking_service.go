package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"ebike-booking/internal/models"
	"ebike-booking/internal/session"
	"ebike-booking/internal/store"
	"ebike-booking/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,63}$`)
	phonePattern   = regexp.MustCompile(`^09\d{9}$`)
	timePattern    = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)(?::([0-5]\d))?$`)
)

// BookingServiceConfig carries the business knobs
type BookingServiceConfig struct {
	MaxPerDay         int
	InstallmentMonths []int
	ReceiptPrefix     string
	IdempotencyTTL    time.Duration
	Clock             func() time.Time
}

// BookingService owns the booking lifecycle: creation, review transitions,
// the installment ledger and receipts
type BookingService struct {
	repo           BookingRepository
	sessions       session.Store
	publisher      EventPublisher
	rates          *RateTable
	receipts       *ReceiptIssuer
	validate       *validator.Validate
	maxPerDay      int
	months         []int
	idempotencyTTL time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	repo BookingRepository,
	sessions session.Store,
	publisher EventPublisher,
	rates *RateTable,
	cfg BookingServiceConfig,
) *BookingService {
	if cfg.MaxPerDay <= 0 {
		cfg.MaxPerDay = 5
	}
	if len(cfg.InstallmentMonths) == 0 {
		cfg.InstallmentMonths = []int{6, 12, 18, 24}
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if rates == nil {
		rates = DefaultRateTable()
	}

	return &BookingService{
		repo:           repo,
		sessions:       sessions,
		publisher:      publisher,
		rates:          rates,
		receipts:       NewReceiptIssuer(cfg.ReceiptPrefix),
		validate:       validator.New(),
		maxPerDay:      cfg.MaxPerDay,
		months:         cfg.InstallmentMonths,
		idempotencyTTL: cfg.IdempotencyTTL,
		now:            cfg.Clock,
		logger:         util.GetLogger(),
	}
}

// MaxPerDay is the daily admission ceiling
func (s *BookingService) MaxPerDay() int {
	return s.maxPerDay
}

// CreateBooking validates a draft and persists exactly one booking. A retried
// request carrying the same idempotency key returns the first booking with
// replayed=true.
func (s *BookingService) CreateBooking(ctx context.Context, actor models.Identity, draft *Draft, idempotencyKey string) (booking *models.Booking, replayed bool, err error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if draft == nil {
		return nil, false, validationError("invalid_body", "booking draft is required")
	}

	idemKey := session.Key{Kind: session.KindIdempotency, Subject: actor.Email + "|" + idempotencyKey}
	if idempotencyKey != "" && s.sessions != nil {
		if existing := s.replay(ctx, idemKey); existing != nil {
			s.logger.Info("Duplicate booking request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("order_id", existing.OrderID))
			return existing, true, nil
		}
	}

	now := s.now()
	b, err := s.buildBooking(ctx, actor, draft, now)
	if err != nil {
		util.BookingsRefusedTotal.WithLabelValues(errorCode(err)).Inc()
		return nil, false, err
	}

	if err := s.repo.CreateBooking(ctx, b); err != nil {
		util.BookingsRefusedTotal.WithLabelValues("store").Inc()
		return nil, false, storeError(err, b.OrderID)
	}

	util.BookingsCreatedTotal.WithLabelValues(string(b.ServiceType)).Inc()
	s.logger.Info("Booking created",
		zap.String("order_id", b.OrderID),
		zap.String("service_type", string(b.ServiceType)),
		zap.String("payment_status", string(b.PaymentStatus)))

	if idempotencyKey != "" && s.sessions != nil {
		if err := s.sessions.Put(ctx, idemKey, []byte(b.OrderID), s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to remember idempotency key", zap.String("order_id", b.OrderID), zap.Error(err))
		}
	}

	s.publish(ctx, models.EventTypeBookingCreated, b, actor, 0)
	return b, false, nil
}

// replay returns the booking created under key, if any
func (s *BookingService) replay(ctx context.Context, key session.Key) *models.Booking {
	orderID, err := s.sessions.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		}
		return nil
	}
	b, err := s.repo.GetBooking(ctx, string(orderID))
	if err != nil {
		return nil
	}
	return b
}

// buildBooking runs the validation sequence and applies defaults. Nothing is
// written until every check has passed.
func (s *BookingService) buildBooking(ctx context.Context, actor models.Identity, d *Draft, now time.Time) (*models.Booking, error) {
	// 1. order id
	orderID := strings.TrimSpace(d.OrderID)
	if orderID == "" {
		orderID = generateOrderID(now)
	} else {
		if !orderIDPattern.MatchString(orderID) {
			return nil, validationError("invalid_order_id", "order id may only contain letters, digits, '-' and '_'")
		}
		if _, err := s.repo.GetBooking(ctx, orderID); err == nil {
			return nil, conflictError("duplicate_order", "order id %s is already in use", orderID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, storeError(err, orderID)
		}
	}

	// 2. owner identity
	email := strings.TrimSpace(d.Email)
	if email == "" {
		email = actor.Email
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, validationError("invalid_email", "a valid owner email is required")
	}
	if !actor.IsAdmin() && !actor.Owns(email) {
		return nil, forbiddenError("bookings can only be created for your own account")
	}

	// 3. contact details, model and amounts
	fullName := strings.Join(strings.Fields(d.FullName), " ")
	if utf8.RuneCountInString(fullName) < 2 {
		return nil, validationError("invalid_full_name", "full name must be at least 2 characters")
	}
	phone, ok := normalizePhone(d.Phone)
	if !ok {
		return nil, validationError("invalid_phone", "phone must be a mobile number like 09171234567")
	}
	model := strings.TrimSpace(d.Model)
	if model == "" {
		return nil, validationError("missing_model", "model is required")
	}
	for name, v := range map[string]*decimal.Decimal{"subtotal": d.Subtotal, "shippingFee": d.ShippingFee, "total": d.Total} {
		if v != nil && v.IsNegative() {
			return nil, validationError("invalid_amount", "%s must not be negative", name)
		}
	}

	// 4. payment method and service type
	method, err := parsePaymentMethod(d.PaymentMethod)
	if err != nil {
		return nil, err
	}
	service, err := parseServiceType(d.ServiceType)
	if err != nil {
		return nil, err
	}
	if method == "" && service == models.ServiceTypeInstallment {
		method = models.PaymentMethodInstallment
	}
	if service == "" {
		service = models.ServiceTypeDelivery
		if method == models.PaymentMethodInstallment {
			service = models.ServiceTypeInstallment
		}
	}

	// 5. schedule
	date, tm, err := normalizeSchedule(d.ScheduleDate, d.ScheduleTime)
	if err != nil {
		return nil, err
	}

	b := &models.Booking{
		OrderID:             orderID,
		OwnerEmail:          email,
		FullName:            fullName,
		Phone:               phone,
		Model:               model,
		ColorVariant:        strings.TrimSpace(d.Color),
		UnitImageRef:        strings.TrimSpace(d.Image),
		PaymentMethod:       method,
		ServiceType:         service,
		ScheduleDate:        date,
		ScheduleTime:        tm,
		ShippingAddress:     strings.TrimSpace(d.ShippingAddress),
		ShippingCoordinates: d.ShippingCoordinates,
		Stage:               models.StagePendingReview,
		ReviewDecision:      models.ReviewDecisionNone,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	b.Subtotal = decimalOrZero(d.Subtotal).Round(2)
	b.ShippingFee = decimalOrZero(d.ShippingFee).Round(2)

	// 6. installment plan, else the plain total
	if b.IsInstallment() {
		if err := s.attachPlan(b, d); err != nil {
			return nil, err
		}
	} else {
		if !b.Subtotal.IsPositive() {
			return nil, validationError("invalid_amount", "subtotal must be greater than zero")
		}
		expected := b.Subtotal.Add(b.ShippingFee)
		if d.Total != nil && !d.Total.Round(2).Equal(expected) {
			return nil, validationError("total_mismatch", "total %s does not equal subtotal plus shipping fee (%s)",
				d.Total.StringFixed(2), expected.StringFixed(2))
		}
		b.Total = expected
	}

	if err := s.applyInitialLabels(b, actor, d); err != nil {
		return nil, err
	}

	// 7. capacity
	if b.ScheduleDate != nil {
		if err := s.admit(ctx, *b.ScheduleDate, ""); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// attachPlan prices a new installment booking from the rate table
func (s *BookingService) attachPlan(b *models.Booking, d *Draft) error {
	in := d.Installment
	if in == nil || in.MonthsToPay == 0 {
		return validationError("invalid_installment_term", "monthsToPay is required for installment bookings")
	}
	if !containsInt(s.months, in.MonthsToPay) {
		return validationError("invalid_installment_term", "monthsToPay must be one of %v", s.months)
	}

	srp := b.Subtotal
	if in.SRP != nil {
		srp = in.SRP.Round(2)
	}
	plan, err := s.rates.Lookup(b.Model, srp)
	if err != nil {
		return err
	}
	monthly, ok := plan.Monthly[in.MonthsToPay]
	if !ok {
		return validationError("plan_not_available", "%s is not offered over %d months", plan.DisplayName, in.MonthsToPay)
	}

	down := plan.MinDownPayment
	if in.DownPayment != nil {
		down = in.DownPayment.Round(2)
	}
	if down.LessThan(plan.MinDownPayment) {
		return validationError("down_payment_too_low", "down payment must be at least %s", plan.MinDownPayment.StringFixed(2))
	}

	if b.Subtotal.IsZero() {
		b.Subtotal = plan.SRP
	}
	b.Total = b.Subtotal.Add(b.ShippingFee)
	if d.Total != nil && d.Total.IsPositive() {
		b.Total = d.Total.Round(2)
	}

	payable := monthly.Mul(decimal.NewFromInt(int64(in.MonthsToPay))).Round(2)
	b.Installment = &models.InstallmentPlan{
		MonthsToPay:         in.MonthsToPay,
		MonthlyAmortization: monthly,
		MinDownPayment:      plan.MinDownPayment,
		DownPayment:         down,
		SRP:                 plan.SRP,
		TotalPaid:           decimal.Zero,
		OutstandingBalance:  payable,
	}
	return nil
}

// applyInitialLabels sets the default status, fulfillment and payment labels.
// Only admins may seed their own labels, and those must still read as pending.
func (s *BookingService) applyInitialLabels(b *models.Booking, actor models.Identity, d *Draft) error {
	switch b.ServiceType {
	case models.ServiceTypeInstallment:
		b.Status = models.StatusApplicationReview
		b.FulfillmentStatus = models.FulfillmentUnderReview
	case models.ServiceTypePickUp:
		b.Status = models.StatusPendingReview
		b.FulfillmentStatus = models.FulfillmentReadyToPickUp
	default:
		b.Status = models.StatusPendingReview
		b.FulfillmentStatus = models.FulfillmentInProcess
	}

	switch b.PaymentMethod {
	case models.PaymentMethodCashOnDelivery:
		b.PaymentStatus = models.PaymentStatusPendingCOD
	case models.PaymentMethodInstallment:
		b.PaymentStatus = models.PaymentStatusInstallmentReview
	default:
		b.PaymentStatus = models.PaymentStatusAwaitingConfirmation
	}

	if !actor.IsAdmin() || (d.Status == "" && d.FulfillmentStatus == "") {
		return nil
	}
	status, fulfillment := b.Status, b.FulfillmentStatus
	if d.Status != "" {
		status = d.Status
	}
	if d.FulfillmentStatus != "" {
		fulfillment = d.FulfillmentStatus
	}
	if models.ClassifyLegacy(status, fulfillment) != models.StagePendingReview {
		return validationError("invalid_initial_status", "new bookings must start pending review")
	}
	b.Status, b.FulfillmentStatus = status, fulfillment
	return nil
}

// ListBookings returns owner's bookings; admins may list anyone's, or
// everyone's with an empty owner
func (s *BookingService) ListBookings(ctx context.Context, actor models.Identity, filter store.BookingFilter) ([]models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ListBookings")
	defer span.End()

	if filter.OwnerEmail == "" && !actor.IsAdmin() {
		filter.OwnerEmail = actor.Email
	}
	if !actor.IsAdmin() && !actor.Owns(filter.OwnerEmail) {
		return nil, forbiddenError("you may only list your own bookings")
	}
	if filter.ScheduleDate != "" {
		if _, err := time.Parse(dateLayout, filter.ScheduleDate); err != nil {
			return nil, validationError("invalid_schedule_date", "date must be a calendar date in YYYY-MM-DD form")
		}
	}

	bookings, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// GetBooking returns one booking visible to actor
func (s *BookingService) GetBooking(ctx context.Context, actor models.Identity, orderID string) (*models.Booking, error) {
	ctx, span := util.StartBookingSpan(ctx, "BookingService.GetBooking", orderID)
	defer span.End()

	b, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(b.OwnerEmail) {
		return nil, forbiddenError("this booking belongs to another account")
	}
	return b, nil
}

// Ledger resolves the installment ledger of a visible booking
func (s *BookingService) Ledger(ctx context.Context, actor models.Identity, orderID string) (*LedgerView, error) {
	b, err := s.GetBooking(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	view := ResolveLedger(b, s.now())
	return &view, nil
}

// Reconcile merges the caller's cached copy with the stored booking
func (s *BookingService) Reconcile(ctx context.Context, actor models.Identity, orderID string, cached *models.Booking) (*models.Booking, error) {
	authoritative, err := s.GetBooking(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.OrderID != "" && cached.OrderID != orderID {
		return nil, validationError("order_id_mismatch", "cached booking %s does not match %s", cached.OrderID, orderID)
	}
	return Merge(cached, authoritative), nil
}

// Quote returns installment terms for a model or sticker price
func (s *BookingService) Quote(model string, srp decimal.Decimal) (*Quote, error) {
	plan, err := s.rates.Lookup(model, srp)
	if err != nil {
		return nil, err
	}
	q := plan.Quote(s.months)
	return &q, nil
}

func (s *BookingService) load(ctx context.Context, orderID string) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, orderID)
	if err != nil {
		return nil, storeError(err, orderID)
	}
	return b, nil
}

// publish emits a booking event; failures are logged, never returned
func (s *BookingService) publish(ctx context.Context, eventType string, b *models.Booking, actor models.Identity, month int) {
	if s.publisher == nil {
		return
	}

	event := &models.BookingEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		OrderID:           b.OrderID,
		OwnerEmail:        b.OwnerEmail,
		FullName:          b.FullName,
		Model:             b.Model,
		Status:            b.Status,
		FulfillmentStatus: b.FulfillmentStatus,
		PaymentStatus:     string(b.PaymentStatus),
		ReceiptNumber:     b.ReceiptNumber,
		Month:             month,
		Actor:             actor.Email,
	}
	if b.ScheduleDate != nil {
		event.ScheduleDate = *b.ScheduleDate
	}

	if err := s.publisher.PublishBookingEvent(ctx, event); err != nil {
		util.EventPublishFailedTotal.WithLabelValues(eventType).Inc()
		util.LoggerFromContext(ctx).Error("Failed to publish booking event",
			zap.String("event_type", eventType),
			zap.String("order_id", b.OrderID),
			zap.Error(err))
	}
}

func generateOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("EB-%s-%s", now.Format("20060102"), suffix)
}

// normalizePhone accepts 09XXXXXXXXX and rewrites +639/639 prefixes to 09
func normalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && digits.Len() == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	phone := digits.String()
	if strings.HasPrefix(phone, "639") && len(phone) == 12 {
		phone = "0" + phone[2:]
	}
	return phone, phonePattern.MatchString(phone)
}

// normalizeSchedule requires date and time together and pads the time to
// HH:MM or HH:MM:SS
func normalizeSchedule(date, tm string) (*string, *string, error) {
	date, tm = strings.TrimSpace(date), strings.TrimSpace(tm)
	if date == "" && tm == "" {
		return nil, nil, nil
	}
	if date == "" || tm == "" {
		return nil, nil, validationError("incomplete_schedule", "scheduleDate and scheduleTime must be provided together")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, nil, validationError("invalid_schedule_date", "scheduleDate must be a calendar date in YYYY-MM-DD form")
	}
	m := timePattern.FindStringSubmatch(tm)
	if m == nil {
		return nil, nil, validationError("invalid_schedule_time", "scheduleTime must be a 24-hour time like 10:00")
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	normalized := hour + ":" + m[2]
	if m[3] != "" && m[3] != "00" {
		normalized += ":" + m[3]
	}
	return &date, &normalized, nil
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// errorCode is the metric label for a refusal
func errorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
