package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rafit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_bookings_total",
			Help: "Total number of bookings created, by resulting status",
		},
		[]string{"status", "source"},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_booking_rejections_total",
			Help: "Total number of booking operations rejected with a typed failure",
		},
		[]string{"operation", "code"},
	)

	BookingCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
		[]string{"by", "refunded"},
	)

	WaitlistPromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rafit_waitlist_promotions_total",
			Help: "Total number of waitlisted bookings promoted to confirmed",
		},
	)

	WaitlistPromotionSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rafit_waitlist_promotion_skips_total",
			Help: "Total number of waitlist candidates passed over during promotion",
		},
	)

	CheckinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rafit_checkins_total",
			Help: "Total number of bookings checked in",
		},
	)

	NoShowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rafit_no_shows_total",
			Help: "Total number of bookings marked as no-show",
		},
	)

	ClassCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rafit_class_cancellations_total",
			Help: "Total number of class instances cancelled by the studio",
		},
	)

	BalanceMovementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_balance_movements_total",
			Help: "Total membership balance consumed or restored, in units",
		},
		[]string{"unit", "kind"},
	)

	TxConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_tx_conflicts_total",
			Help: "Total number of serialization conflicts seen by booking operations",
		},
		[]string{"operation", "outcome"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafit_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"backend", "type", "status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(status, source string) {
	BookingsTotal.WithLabelValues(status, source).Inc()
}

func RecordRejection(operation, code string) {
	BookingRejectionsTotal.WithLabelValues(operation, code).Inc()
}

func RecordBookingCancellation(by string, refunded bool) {
	r := "false"
	if refunded {
		r = "true"
	}
	BookingCancellationsTotal.WithLabelValues(by, r).Inc()
}

func RecordPromotion() {
	WaitlistPromotionsTotal.Inc()
}

func RecordPromotionSkip() {
	WaitlistPromotionSkipsTotal.Inc()
}

func RecordCheckin() {
	CheckinsTotal.Inc()
}

func RecordNoShow() {
	NoShowsTotal.Inc()
}

func RecordClassCancellation() {
	ClassCancellationsTotal.Inc()
}

func RecordBalanceMovement(unit, kind string, amount int) {
	BalanceMovementsTotal.WithLabelValues(unit, kind).Add(float64(amount))
}

func RecordTxConflict(operation, outcome string) {
	TxConflictsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordEvent(backend, eventType, status string) {
	EventsPublishedTotal.WithLabelValues(backend, eventType, status).Inc()
}
