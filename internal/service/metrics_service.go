package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the attempt lifecycle. A nil receiver is a no-op everywhere so wiring
// stays optional.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	attemptsOpened    prometheus.Counter
	attemptConflicts  prometheus.Counter
	attemptsCancelled prometheus.Counter
	submissionsFinal  *prometheus.CounterVec
	sweeperLate       prometheus.Counter
	sweeperClosed     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	attemptsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attempts_opened_total",
		Help: "Total attempts opened",
	})

	attemptConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attempt_conflicts_total",
		Help: "Open attempts rejected because the slot was already claimed",
	})

	attemptsCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attempts_cancelled_total",
		Help: "Total reservations cancelled",
	})

	submissionsFinal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_finalized_total",
		Help: "Submissions finalized via explicit submit",
	}, []string{"late"})

	sweeperLate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_marked_late_total",
		Help: "Submissions transitioned to late by the sweeper",
	})

	sweeperClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_reservations_closed_total",
		Help: "Elapsed reservations closed by the sweeper",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attemptsOpened, attemptConflicts, attemptsCancelled, submissionsFinal, sweeperLate, sweeperClosed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		attemptsOpened:    attemptsOpened,
		attemptConflicts:  attemptConflicts,
		attemptsCancelled: attemptsCancelled,
		submissionsFinal:  submissionsFinal,
		sweeperLate:       sweeperLate,
		sweeperClosed:     sweeperClosed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// AttemptOpened counts a successful open.
func (m *MetricsService) AttemptOpened() {
	if m == nil {
		return
	}
	m.attemptsOpened.Inc()
}

// AttemptConflict counts an open rejected by the consistency guard.
func (m *MetricsService) AttemptConflict() {
	if m == nil {
		return
	}
	m.attemptConflicts.Inc()
}

// AttemptCancelled counts a cancelled reservation.
func (m *MetricsService) AttemptCancelled() {
	if m == nil {
		return
	}
	m.attemptsCancelled.Inc()
}

// SubmissionFinalized counts an explicit submit, split by lateness.
func (m *MetricsService) SubmissionFinalized(late bool) {
	if m == nil {
		return
	}
	m.submissionsFinal.WithLabelValues(fmt.Sprintf("%t", late)).Inc()
}

// SweeperMarkedLate counts a passive late transition.
func (m *MetricsService) SweeperMarkedLate() {
	if m == nil {
		return
	}
	m.sweeperLate.Inc()
}

// SweeperClosedReservations counts bulk-closed elapsed reservations.
func (m *MetricsService) SweeperClosedReservations(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweeperClosed.Add(float64(n))
}
