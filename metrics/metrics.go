// Package metrics exposes Prometheus collectors for ledger activity, payment
// checks, capability tokens and storage transfers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitfsorg/filepay-go/ledger"
)

const namespace = "filepay"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	escrowAmount  *prometheus.CounterVec
	paymentChecks *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	storageOps    *prometheus.CounterVec
	storageBytes  prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Committed ledger events by kind.",
		}, []string{"kind"}),
		escrowAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "amount_total",
			Help:      "Units moved through escrow by movement.",
		}, []string{"movement"}),
		paymentChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "checks_total",
			Help:      "Payment verifications by result.",
		}, []string{"result"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capability",
			Name:      "tokens_total",
			Help:      "Capability tokens issued and verified, by outcome.",
		}, []string{"outcome"}),
		storageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage transfer calls by operation and result.",
		}, []string{"op", "result"}),
		storageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "stored_bytes_total",
			Help:      "Bytes handed to the storage backend.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.escrowAmount, m.paymentChecks, m.tokens, m.storageOps, m.storageBytes,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEvents counts a committed batch. It is registered with
// ledger.Log.OnCommit.
func (m *Metrics) ObserveEvents(events []ledger.Event) {
	for _, ev := range events {
		m.events.WithLabelValues(ev.Kind).Inc()
		var movement string
		switch ev.Kind {
		case ledger.EventDeposited:
			movement = "deposited"
		case ledger.EventReleased:
			movement = "released"
		case ledger.EventRefunded, ledger.EventEmergencyRefunded:
			movement = "refunded"
		case ledger.EventAccountFunded:
			movement = "funded"
		default:
			continue
		}
		m.escrowAmount.WithLabelValues(movement).Add(float64(ev.Amount))
	}
}

// PaymentChecked records the result of one payment verification.
func (m *Metrics) PaymentChecked(paid bool) {
	m.paymentChecks.WithLabelValues(result(paid, "paid", "unpaid")).Inc()
}

// TokenIssued records one issued capability token.
func (m *Metrics) TokenIssued() {
	m.tokens.WithLabelValues("issued").Inc()
}

// TokenVerified records the outcome of one token verification.
func (m *Metrics) TokenVerified(ok bool) {
	m.tokens.WithLabelValues(result(ok, "accepted", "rejected")).Inc()
}

// StorageOp records one storage call. size is counted only for successful puts.
func (m *Metrics) StorageOp(op string, size int, err error) {
	m.storageOps.WithLabelValues(op, result(err == nil, "ok", "error")).Inc()
	if op == "put" && err == nil {
		m.storageBytes.Add(float64(size))
	}
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
