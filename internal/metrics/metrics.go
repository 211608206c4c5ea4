package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Checkouts    *prometheus.CounterVec
	TokensMinted prometheus.Counter
	KycProofs    *prometheus.CounterVec
	Imports      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_checkouts_total",
			Help: "Checkout attempts by outcome code (ok on success)",
		}, []string{"outcome"}),
		TokensMinted: f.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_tokens_minted_total",
			Help: "Tokens credited by admin mints",
		}),
		KycProofs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_kyc_proofs_total",
			Help: "KYC proof submissions by resulting state",
		}, []string{"result"}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_catalog_imports_total",
			Help: "Catalog imports by mode",
		}, []string{"mode"}),
	}
}

func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddMinted(amount int64) {
	if m == nil {
		return
	}
	m.TokensMinted.Add(float64(amount))
}

func (m *Metrics) ObserveKycProof(result string) {
	if m == nil {
		return
	}
	m.KycProofs.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveImport(mode string) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(mode).Inc()
}
