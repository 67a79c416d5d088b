package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the platform's counters. Construct with a nil registerer in
// tests to get working but unregistered collectors.
type Metrics struct {
	paymentsInitiated   *prometheus.CounterVec
	paymentCallbacks    *prometheus.CounterVec
	duplicateCallbacks  prometheus.Counter
	accessGrants        prometheus.Counter
	earningsAccrued     prometheus.Counter
	contentUploads      prometheus.Counter
	httpRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		paymentsInitiated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sautihub_payments_initiated_total",
			Help: "Payment initiation attempts by result",
		}, []string{"result"}),

		paymentCallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sautihub_payment_callbacks_total",
			Help: "Provider callback deliveries by processing outcome",
		}, []string{"outcome"}),

		duplicateCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sautihub_duplicate_callbacks_total",
			Help: "Callback deliveries absorbed as idempotent no-ops",
		}),

		accessGrants: factory.NewCounter(prometheus.CounterOpts{
			Name: "sautihub_access_grants_total",
			Help: "Access grants written",
		}),

		earningsAccrued: factory.NewCounter(prometheus.CounterOpts{
			Name: "sautihub_earnings_accrued_cents_total",
			Help: "Creator earnings accrued in cents",
		}),

		contentUploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "sautihub_content_uploads_total",
			Help: "Media uploads accepted",
		}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sautihub_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"path", "method"}),
	}
}

func (m *Metrics) RecordPaymentInitiated(result string) {
	m.paymentsInitiated.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCallback(outcome string) {
	m.paymentCallbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDuplicateCallback() {
	m.duplicateCallbacks.Inc()
}

// RecordAccessGranted counts one grant and the earnings it accrued.
func (m *Metrics) RecordAccessGranted(creatorShareCents int64) {
	m.accessGrants.Inc()
	m.earningsAccrued.Add(float64(creatorShareCents))
}

func (m *Metrics) RecordContentUpload() {
	m.contentUploads.Inc()
}

// InstrumentHandler wraps next with a request-duration observation labelled by
// route name. The name is the registered pattern, not the raw request path,
// to keep label cardinality bounded.
func (m *Metrics) InstrumentHandler(name string, next http.Handler) http.Handler {
	obs := m.httpRequestDuration.MustCurryWith(prometheus.Labels{"path": name})
	return promhttp.InstrumentHandlerDuration(obs, next)
}
