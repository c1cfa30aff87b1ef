package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the intake module.
type Metrics struct {
	RequestsSubmitted  prometheus.Counter
	ValidationFailures prometheus.Counter
	StatusChanges      *prometheus.CounterVec
	Assignments        prometheus.Counter
	StoreFailures      *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
}

// New registers the intake metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_requests_submitted_total",
			Help: "Total number of incorporation requests accepted",
		}),
		ValidationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_submission_validation_failures_total",
			Help: "Total number of submissions rejected by form validation",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_request_status_changes_total",
			Help: "Total number of status updates, by new status",
		}, []string{"status"}),
		Assignments: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_request_assignments_total",
			Help: "Total number of requests assigned to a handler",
		}),
		StoreFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_request_store_failures_total",
			Help: "Store errors by operation",
		}, []string{"operation"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_request_operation_duration_seconds",
			Help:    "Duration of request repository operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveOperation records the duration of op. Call with time.Now() at the
// start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementSubmitted() {
	m.RequestsSubmitted.Inc()
}

func (m *Metrics) IncrementValidationFailure() {
	m.ValidationFailures.Inc()
}

func (m *Metrics) IncrementStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementAssignment() {
	m.Assignments.Inc()
}

func (m *Metrics) IncrementStoreFailure(op string) {
	m.StoreFailures.WithLabelValues(op).Inc()
}
