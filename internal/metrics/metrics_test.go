package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedger(reg)

	m.IncExpense("create")
	m.IncExpense("create")
	m.IncExpense("")
	m.ObserveSettlements("SIMPLIFIED", 2, 1, decimal.RequireFromString("75.50"))
	m.ObserveRPC("/splitledger.v1.SettlementService/ExecuteSettlements", "ok", 120*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchValue(mfs, "splitledger_expenses_total", "operation", "create")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchValue(mfs, "splitledger_expenses_total", "operation", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchValue(mfs, "splitledger_settlements_executed_total", "mode", "SIMPLIFIED")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchValue(mfs, "splitledger_settled_amount_total", "mode", "SIMPLIFIED")
	require.NoError(t, err)
	assert.InDelta(t, 75.5, got, 0.0001)

	got, err = fetchValue(mfs, "splitledger_settlements_skipped_total", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	mf := findMetricFamily(mfs, "splitledger_rpc_duration_seconds")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNilLedgerIsNoop(t *testing.T) {
	var m *Ledger
	assert.NotPanics(t, func() {
		m.IncExpense("create")
		m.ObserveSettlements("DETAILED", 1, 0, decimal.NewFromInt(1))
		m.ObserveRPC("p", "ok", time.Second)
	})

	unregistered := NewLedger(nil)
	assert.NotPanics(t, func() { unregistered.IncExpense("create") })
}

func fetchValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" || matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
