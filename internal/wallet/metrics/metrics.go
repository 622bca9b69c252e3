package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for wallet operations.
type Metrics struct {
	WalletsCreated    prometheus.Counter
	Unlocks           *prometheus.CounterVec
	LockoutsTriggered prometheus.Counter
	BackupsCreated    prometheus.Counter
	Restores          *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		WalletsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_wallets_created_total",
			Help: "Total number of wallets created",
		}),
		Unlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_wallet_unlocks_total",
			Help: "Total number of wallet unlock attempts, labeled by outcome",
		}, []string{"outcome"}),
		LockoutsTriggered: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_wallet_lockouts_triggered_total",
			Help: "Total number of times failed unlocks saturated the lockout counter",
		}),
		BackupsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_wallet_backups_created_total",
			Help: "Total number of wallet backups created",
		}),
		Restores: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_wallet_restores_total",
			Help: "Total number of wallet restores, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementWalletsCreated() {
	m.WalletsCreated.Inc()
}

// IncrementUnlock records an attempt; outcome is success, failure or locked_out.
func (m *Metrics) IncrementUnlock(outcome string) {
	m.Unlocks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLockouts() {
	m.LockoutsTriggered.Inc()
}

func (m *Metrics) IncrementBackups() {
	m.BackupsCreated.Inc()
}

func (m *Metrics) IncrementRestore(ok bool) {
	if ok {
		m.Restores.WithLabelValues("success").Inc()
		return
	}
	m.Restores.WithLabelValues("failure").Inc()
}
