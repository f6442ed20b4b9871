package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	}, []string{"service_type"})

	BookingsRefusedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_refused_total",
		Help: "Total number of booking drafts refused",
	}, []string{"reason"})

	CapacityCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_capacity_check_latency_seconds",
		Help:    "Latency of the per-day capacity count",
		Buckets: prometheus.DefBuckets,
	})

	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Total number of booking state transitions attempted",
	}, []string{"action", "result"})

	ReceiptsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_receipts_issued_total",
		Help: "Total number of receipt numbers issued",
	})

	InstallmentPaymentsMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "installment_payments_marked_total",
		Help: "Total number of installment months newly marked paid",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_notifications_sent_total",
		Help: "Total number of owner notifications delivered",
	}, []string{"event_type"})

	NotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_notifications_failed_total",
		Help: "Total number of owner notifications that failed",
	}, []string{"event_type"})

	EventPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_event_publish_failed_total",
		Help: "Total number of booking events that could not be published",
	}, []string{"event_type"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Total number of requests refused by the rate limiter",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
