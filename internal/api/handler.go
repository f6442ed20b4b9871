package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"ebike-booking/internal/models"
	"ebike-booking/internal/service"
	"ebike-booking/internal/session"
	"ebike-booking/internal/store"
	"ebike-booking/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface
type Options struct {
	JWTSecret          string
	SessionTTL         time.Duration
	RateLimitPerMinute int
	Readiness          map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	bookingService *service.BookingService
	sessions       session.Store
	opts           Options
}

// NewHandler creates a new HTTP handler
func NewHandler(bookingService *service.BookingService, sessions session.Store, opts Options) *Handler {
	return &Handler{
		bookingService: bookingService,
		sessions:       sessions,
		opts:           opts,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(Authenticate(h.opts.JWTSecret, h.sessions), RateLimit(h.sessions, h.opts.RateLimitPerMinute))
	{
		v1.POST("/sessions", h.createSession)
		v1.DELETE("/sessions/current", h.deleteSession)

		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings", h.listBookings)
		v1.GET("/bookings/availability", h.availability)
		v1.GET("/bookings/:orderId", h.getBooking)
		v1.GET("/bookings/:orderId/ledger", h.getLedger)
		v1.GET("/bookings/:orderId/receipt", h.getReceipt)
		v1.POST("/bookings/:orderId/cancel", h.cancelBooking)
		v1.POST("/bookings/:orderId/reconcile", h.reconcileBooking)
		v1.GET("/installments/plans", h.installmentPlans)
	}

	admin := v1.Group("/admin", RequireAdmin())
	{
		admin.GET("/bookings", h.adminListBookings)
		admin.POST("/bookings/:orderId/approve", h.approveBooking)
		admin.POST("/bookings/:orderId/reject", h.rejectBooking)
		admin.POST("/bookings/:orderId/payment-status", h.setPaymentStatus)
		admin.POST("/bookings/:orderId/fulfillment-status", h.progressFulfillment)
		admin.POST("/bookings/:orderId/installment/mark-paid", h.markMonthPaid)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.opts.Readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, label := http.StatusOK, "ready"
	if !ready {
		status, label = http.StatusServiceUnavailable, "not_ready"
	}
	c.JSON(status, gin.H{
		"status": label,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// createSession exchanges the caller's credential for an opaque session token
func (h *Handler) createSession(c *gin.Context) {
	if h.sessions == nil {
		abortJSON(c, http.StatusServiceUnavailable, "sessions_unavailable", "session store is not configured")
		return
	}
	ttl := h.opts.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	token, err := IssueSessionToken(c.Request.Context(), h.sessions, currentIdentity(c), ttl)
	if err != nil {
		util.LoggerFromContext(c.Request.Context()).Error("Failed to issue session", zap.Error(err))
		abortJSON(c, http.StatusServiceUnavailable, "sessions_unavailable", "could not start a session")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":     token,
		"expiresAt": time.Now().Add(ttl).UTC(),
	})
}

// deleteSession revokes the opaque token used for this request
func (h *Handler) deleteSession(c *gin.Context) {
	token := c.GetString(sessionTokenKey)
	if token == "" {
		abortJSON(c, http.StatusBadRequest, "not_a_session", "request was not made with a session token")
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), session.Key{Kind: session.KindSession, Subject: token}); err != nil {
		util.LoggerFromContext(c.Request.Context()).Error("Failed to revoke session", zap.Error(err))
		abortJSON(c, http.StatusServiceUnavailable, "sessions_unavailable", "could not end the session")
		return
	}
	c.Status(http.StatusNoContent)
}

// bindJSON decodes the body, reporting malformed input as a validation error
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var e *service.Error
		if errors.As(err, &e) {
			writeError(c, e)
			return false
		}
		if errors.Is(err, io.EOF) {
			abortJSON(c, http.StatusBadRequest, "invalid_body", "request body is required")
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_body",
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	var draft service.Draft
	if !bindJSON(c, &draft) {
		return
	}

	booking, replayed, err := h.bookingService.CreateBooking(c.Request.Context(), currentIdentity(c), &draft, c.GetHeader("Idempotency-Key"))
	if err != nil {
		writeError(c, err)
		return
	}

	if replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, booking)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// listBookings lists the caller's bookings, or ?owner= for admins
func (h *Handler) listBookings(c *gin.Context) {
	filter := store.BookingFilter{OwnerEmail: c.Query("owner")}
	h.respondList(c, filter)
}

func (h *Handler) adminListBookings(c *gin.Context) {
	filter := store.BookingFilter{
		OwnerEmail:   c.Query("owner"),
		ScheduleDate: c.Query("date"),
		Stage:        models.Stage(c.Query("stage")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			abortJSON(c, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	h.respondList(c, filter)
}

func (h *Handler) respondList(c *gin.Context, filter store.BookingFilter) {
	bookings, err := h.bookingService.ListBookings(c.Request.Context(), currentIdentity(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

func (h *Handler) availability(c *gin.Context) {
	avail, err := h.bookingService.Availability(c.Request.Context(), c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

// getBooking returns the booking plus its ledger when it is financed
func (h *Handler) getBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), currentIdentity(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"booking": booking}
	if booking.IsInstallment() {
		resp["ledger"] = service.ResolveLedger(booking, time.Now())
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getLedger(c *gin.Context) {
	view, err := h.bookingService.Ledger(c.Request.Context(), currentIdentity(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) getReceipt(c *gin.Context) {
	booking, err := h.bookingService.EnsureReceipt(c.Request.Context(), currentIdentity(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":         booking.OrderID,
		"receiptNumber":   booking.ReceiptNumber,
		"receiptIssuedAt": booking.ReceiptIssuedAt,
		"ledger":          service.ResolveLedger(booking, time.Now()),
	})
}

func (h *Handler) cancelBooking(c *gin.Context) {
	booking, err := h.bookingService.Cancel(c.Request.Context(), currentIdentity(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// reconcileBooking merges the posted cached copy with the stored booking
func (h *Handler) reconcileBooking(c *gin.Context) {
	var cached models.Booking
	if !bindJSON(c, &cached) {
		return
	}

	merged, err := h.bookingService.Reconcile(c.Request.Context(), currentIdentity(c), c.Param("orderId"), &cached)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}

func (h *Handler) installmentPlans(c *gin.Context) {
	srp := decimal.Zero
	if raw := c.Query("srp"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, "invalid_amount", "srp must be a number")
			return
		}
		srp = v
	}

	quote, err := h.bookingService.Quote(c.Query("model"), srp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) approveBooking(c *gin.Context) {
	booking, err := h.bookingService.Approve(c.Request.Context(), currentIdentity(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// rejectBooking notifies the owner asynchronously; delivery problems never
// reach the admin
func (h *Handler) rejectBooking(c *gin.Context) {
	booking, err := h.bookingService.Reject(c.Request.Context(), currentIdentity(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

func (h *Handler) setPaymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.SetPaymentStatus(c.Request.Context(), currentIdentity(c), c.Param("orderId"), req.PaymentStatus)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) progressFulfillment(c *gin.Context) {
	var req service.FulfillmentUpdate
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.ProgressFulfillment(c.Request.Context(), currentIdentity(c), c.Param("orderId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type markPaidRequest struct {
	Month int `json:"month"`
}

func (h *Handler) markMonthPaid(c *gin.Context) {
	var req markPaidRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, view, err := h.bookingService.MarkMonthPaid(c.Request.Context(), currentIdentity(c), c.Param("orderId"), req.Month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking": booking,
		"ledger":  view,
	})
}
