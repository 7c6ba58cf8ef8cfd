// Package metrics exposes the ledger's Prometheus collectors. A nil *Ledger
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "splitledger"

// Ledger records business and RPC metrics.
type Ledger struct {
	expenses      *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	settledAmount *prometheus.CounterVec
	skipped       prometheus.Counter
	rpcDuration   *prometheus.HistogramVec
}

// NewLedger registers the ledger metrics on the provided registerer.
func NewLedger(reg prometheus.Registerer) *Ledger {
	if reg == nil {
		return &Ledger{}
	}
	expenses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expenses_total",
		Help:      "Expense mutations by operation.",
	}, []string{"operation"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_executed_total",
		Help:      "Settlement transactions executed by mode.",
	}, []string{"mode"})
	settledAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settled_amount_total",
		Help:      "Sum of executed settlement amounts by mode.",
	}, []string{"mode"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_skipped_total",
		Help:      "Requested settlement transactions that were already settled.",
	})
	rpcDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "Duration of RPC calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure", "code"})
	reg.MustRegister(expenses, settlements, settledAmount, skipped, rpcDuration)
	return &Ledger{
		expenses:      expenses,
		settlements:   settlements,
		settledAmount: settledAmount,
		skipped:       skipped,
		rpcDuration:   rpcDuration,
	}
}

// IncExpense counts an expense mutation such as "create", "update" or "delete".
func (l *Ledger) IncExpense(operation string) {
	if l == nil || l.expenses == nil {
		return
	}
	l.expenses.WithLabelValues(normalizeLabel(operation)).Inc()
}

// ObserveSettlements records an execution outcome.
func (l *Ledger) ObserveSettlements(mode string, executed, skipped int, amount decimal.Decimal) {
	if l == nil || l.settlements == nil {
		return
	}
	mode = normalizeLabel(mode)
	l.settlements.WithLabelValues(mode).Add(float64(executed))
	l.settledAmount.WithLabelValues(mode).Add(amount.InexactFloat64())
	l.skipped.Add(float64(skipped))
}

// ObserveRPC records the duration of one RPC call.
func (l *Ledger) ObserveRPC(procedure, code string, duration time.Duration) {
	if l == nil || l.rpcDuration == nil {
		return
	}
	l.rpcDuration.WithLabelValues(normalizeLabel(procedure), normalizeLabel(code)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
