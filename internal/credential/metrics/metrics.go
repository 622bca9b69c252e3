package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential operations.
type Metrics struct {
	CredentialsIssued     *prometheus.CounterVec
	CredentialsRevoked    prometheus.Counter
	Verifications         *prometheus.CounterVec
	PresentationsCreated  prometheus.Counter
	PresentationVerified  *prometheus.CounterVec
	VerificationLatency   prometheus.Histogram
	StatusListsRolledOver prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_credentials_issued_total",
			Help: "Total number of credentials issued, labeled by credential type",
		}, []string{"type"}),
		CredentialsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_credential_verifications_total",
			Help: "Total number of credential verifications, labeled by outcome",
		}, []string{"outcome"}),
		PresentationsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_presentations_created_total",
			Help: "Total number of presentations created",
		}),
		PresentationVerified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_presentation_verifications_total",
			Help: "Total number of presentation verifications, labeled by outcome",
		}, []string{"outcome"}),
		VerificationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesto_credential_verification_latency_seconds",
			Help:    "Latency of credential verification in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		StatusListsRolledOver: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_status_lists_rolled_over_total",
			Help: "Total number of times a full status list forced allocation onto a new list",
		}),
	}
}

func outcome(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

func (m *Metrics) IncrementIssued(credentialType string) {
	m.CredentialsIssued.WithLabelValues(credentialType).Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.CredentialsRevoked.Inc()
}

func (m *Metrics) ObserveVerification(valid bool, seconds float64) {
	m.Verifications.WithLabelValues(outcome(valid)).Inc()
	m.VerificationLatency.Observe(seconds)
}

func (m *Metrics) IncrementPresentationsCreated() {
	m.PresentationsCreated.Inc()
}

func (m *Metrics) IncrementPresentationVerified(valid bool) {
	m.PresentationVerified.WithLabelValues(outcome(valid)).Inc()
}

func (m *Metrics) IncrementStatusListRollover() {
	m.StatusListsRolledOver.Inc()
}
