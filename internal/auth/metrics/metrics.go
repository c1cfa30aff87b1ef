package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for sign-in and session checks.
type Metrics struct {
	SignIns              *prometheus.CounterVec
	SignOuts             prometheus.Counter
	IsRevokedDurationMs  prometheus.Histogram
	AuthenticateDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_sign_ins_total",
			Help: "Sign-in attempts by outcome",
		}, []string{"outcome"}),
		SignOuts: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_sign_outs_total",
			Help: "Total number of sign-outs",
		}),
		IsRevokedDurationMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_is_token_revoked_duration_ms",
			Help:    "Latency of token revocation checks in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		AuthenticateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_authenticate_duration_seconds",
			Help:    "Duration of session token authentication",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) IncrementSignIn(outcome string) {
	m.SignIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSignOut() {
	m.SignOuts.Inc()
}

// ObserveIsRevoked records a revocation lookup latency.
func (m *Metrics) ObserveIsRevoked(d time.Duration) {
	m.IsRevokedDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}

// ObserveAuthenticate records the duration of Authenticate. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObserveAuthenticate(start time.Time) {
	m.AuthenticateDuration.Observe(time.Since(start).Seconds())
}
