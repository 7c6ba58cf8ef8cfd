package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"connectrpc.com/connect"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
)

type flow struct{ from, to, amount string }

func txFlows(txs []*api.SettlementTransaction) []flow {
	out := make([]flow, len(txs))
	for i, t := range txs {
		out[i] = flow{t.FromUserID, t.ToUserID, t.Amount}
	}
	return out
}

func (e *testEnv) available(t *testing.T, actor *models.User, mode string) *api.GetAvailableSettlementsResponse {
	t.Helper()
	resp, err := e.settlements.GetAvailableSettlements(as(actor), connect.NewRequest(&api.GetAvailableSettlementsRequest{
		GroupID: e.group.ID,
		Mode:    mode,
	}))
	require.NoError(t, err)
	return resp.Msg
}

func (e *testEnv) execute(actor *models.User, req *api.ExecuteSettlementsRequest) (*api.ExecuteSettlementsResponse, error) {
	req.GroupID = e.group.ID
	resp, err := e.settlements.ExecuteSettlements(as(actor), connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func counterValue(t *testing.T, env *testEnv, name, mode string) float64 {
	t.Helper()
	families, err := env.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if mode == "" || hasLabel(m, "mode", mode) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestAvailableSettlementsByMode(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	env.chain(t, env.alice, env.bob, env.carol)

	simplified := env.available(t, env.bob, "")
	assert.Equal(t, "SIMPLIFIED", simplified.Mode)
	assert.Equal(t, []flow{{env.alice.ID, env.carol.ID, "50.00"}}, txFlows(simplified.Transactions))
	assert.Equal(t, "50.00", simplified.TotalAmount)
	assert.Equal(t, "PENDING", simplified.Transactions[0].Status)

	detailed := env.available(t, env.bob, "DETAILED")
	assert.Equal(t, "DETAILED", detailed.Mode)
	assert.ElementsMatch(t, []flow{
		{env.alice.ID, env.bob.ID, "50.00"},
		{env.bob.ID, env.carol.ID, "50.00"},
	}, txFlows(detailed.Transactions))
	assert.Equal(t, "100.00", detailed.TotalAmount)

	// Ids are stable while the debt set is unchanged.
	again := env.available(t, env.carol, "")
	assert.Equal(t, simplified.Transactions[0].ID, again.Transactions[0].ID)
}

func TestSettleAllSimplifiedDischargesChain(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	env.chain(t, env.alice, env.bob, env.carol)
	txID := env.available(t, env.bob, "").Transactions[0].ID

	res, err := env.execute(env.bob, &api.ExecuteSettlementsRequest{SettleAll: true, PaymentMethod: "cash", Notes: "march"})
	require.NoError(t, err)
	assert.Equal(t, "SIMPLIFIED", res.Mode)
	assert.Equal(t, 1, res.ExecutedCount)
	assert.Equal(t, 0, res.RemainingCount)
	assert.Equal(t, 0, res.SkippedCount)
	assert.Equal(t, "50.00", res.TotalSettledAmount)
	require.Len(t, res.Executed, 1)
	assert.Equal(t, txID, res.Executed[0].ID)
	assert.Equal(t, "SETTLED", res.Executed[0].Status)
	assert.NotZero(t, res.Executed[0].ExecutedAt)

	debts, err := env.store.ListOutstandingDebts(context.Background(), env.group.ID)
	require.NoError(t, err)
	assert.Empty(t, debts)

	history, err := env.settlements.GetSettlementHistory(as(env.bob), connect.NewRequest(&api.GetSettlementHistoryRequest{
		SettlementScope: api.SettlementScope{GroupID: env.group.ID},
	}))
	require.NoError(t, err)
	require.Len(t, history.Msg.Entries, 2)
	for _, e := range history.Msg.Entries {
		assert.True(t, e.Settled)
		assert.Equal(t, txID, e.SettlementRef)
		assert.Equal(t, "cash", e.PaymentMethod)
		assert.Equal(t, "march", e.Notes)
		assert.Equal(t, "Dinner", e.ExpenseTitle)
	}

	assert.Equal(t, 1.0, counterValue(t, env, "splitledger_settlements_executed_total", "SIMPLIFIED"))
	assert.Equal(t, 50.0, counterValue(t, env, "splitledger_settled_amount_total", "SIMPLIFIED"))
}

func TestSettleAllClosesNettedOutDebts(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	ctx := context.Background()
	env.addExpense(t, env.alice, "50.00", models.SplitAmount, api.SplitShare{UserID: env.bob.ID, Value: "50.00"})
	env.addExpense(t, env.bob, "50.00", models.SplitAmount, api.SplitShare{UserID: env.alice.ID, Value: "50.00"})
	require.Empty(t, env.available(t, env.bob, "").Transactions)

	res, err := env.execute(env.bob, &api.ExecuteSettlementsRequest{SettleAll: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExecutedCount)
	assert.Equal(t, 0, res.RemainingCount)
	assert.Equal(t, "0.00", res.TotalSettledAmount)

	debts, err := env.store.ListOutstandingDebts(ctx, env.group.ID)
	require.NoError(t, err)
	assert.Empty(t, debts)
	assert.Empty(t, env.available(t, env.bob, "DETAILED").Transactions)

	summary, err := env.settlements.GetSettlementSummary(as(env.alice), connect.NewRequest(&api.GetSettlementSummaryRequest{
		SettlementScope: api.SettlementScope{GroupID: env.group.ID},
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Msg.SettledDebts)
	assert.Equal(t, 0, summary.Msg.UnsettledDebts)

	history, err := env.settlements.GetSettlementHistory(as(env.alice), connect.NewRequest(&api.GetSettlementHistoryRequest{
		SettlementScope: api.SettlementScope{GroupID: env.group.ID},
	}))
	require.NoError(t, err)
	require.Len(t, history.Msg.Entries, 2)
	ref := history.Msg.Entries[0].SettlementRef
	assert.NotEmpty(t, ref)
	assert.Equal(t, ref, history.Msg.Entries[1].SettlementRef)

	again, err := env.execute(env.bob, &api.ExecuteSettlementsRequest{SettleAll: true})
	require.NoError(t, err)
	assert.Equal(t, 0, again.ExecutedCount)
}

func TestExecuteRejectsBackdatedSettlement(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementDetailed)
	env.chain(t, env.alice, env.bob, env.carol)
	txID := env.available(t, env.alice, "").Transactions[0].ID
	yesterday := time.Now().Add(-24 * time.Hour).Unix()

	_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txID}, SettledAt: yesterday})
	requireCode(t, err, connect.CodeInvalidArgument)
	assert.Equal(t, "settledAt", errorField(t, err))

	_, err = env.execute(env.alice, &api.ExecuteSettlementsRequest{SettleAll: true, Mode: "SIMPLIFIED", SettledAt: yesterday})
	requireCode(t, err, connect.CodeInvalidArgument)
	assert.Equal(t, "settledAt", errorField(t, err))

	debts, err := env.store.ListOutstandingDebts(context.Background(), env.group.ID)
	require.NoError(t, err)
	assert.Len(t, debts, 2)
}

func TestExecuteTwiceIsNoOp(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	env.chain(t, env.alice, env.bob, env.carol)
	txID := env.available(t, env.alice, "").Transactions[0].ID

	first, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txID}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ExecutedCount)

	second, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txID, txID}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.ExecutedCount)
	assert.Equal(t, 1, second.SkippedCount)
	assert.Equal(t, "0.00", second.TotalSettledAmount)
	assert.Empty(t, second.Executed)

	assert.Equal(t, 1.0, counterValue(t, env, "splitledger_settlements_skipped_total", ""))
}

func TestExecuteDetailedByID(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementDetailed)
	env.chain(t, env.alice, env.bob, env.carol)

	var target *api.SettlementTransaction
	for _, tx := range env.available(t, env.carol, "").Transactions {
		if tx.FromUserID == env.alice.ID {
			target = tx
		}
	}
	require.NotNil(t, target)

	// Any member of a shared group may settle any pair.
	res, err := env.execute(env.carol, &api.ExecuteSettlementsRequest{TransactionIDs: []string{target.ID}})
	require.NoError(t, err)
	assert.Equal(t, "DETAILED", res.Mode)
	assert.Equal(t, []flow{{env.alice.ID, env.bob.ID, "50.00"}}, txFlows(res.Executed))
	assert.Equal(t, []flow{{env.bob.ID, env.carol.ID, "50.00"}}, txFlows(res.Remaining))
	assert.Equal(t, 1, res.RemainingCount)
}

func TestExecutePartialSimplified(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	env.addExpense(t, env.carol, "30.00", models.SplitAmount, api.SplitShare{UserID: env.alice.ID, Value: "30"})
	env.addExpense(t, env.carol, "20.00", models.SplitAmount, api.SplitShare{UserID: env.bob.ID, Value: "20"})

	txs := env.available(t, env.carol, "").Transactions
	require.Equal(t, []flow{
		{env.alice.ID, env.carol.ID, "30.00"},
		{env.bob.ID, env.carol.ID, "20.00"},
	}, txFlows(txs))

	res, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txs[0].ID}})
	require.NoError(t, err)
	assert.Equal(t, "30.00", res.TotalSettledAmount)
	assert.Equal(t, []flow{{env.bob.ID, env.carol.ID, "20.00"}}, txFlows(res.Remaining))
	assert.Equal(t, txs[1].ID, res.Remaining[0].ID)
}

func TestExecuteRejections(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	env.chain(t, env.alice, env.bob, env.carol)
	txID := env.available(t, env.alice, "").Transactions[0].ID

	t.Run("unknown id", func(t *testing.T) {
		_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{"00000000-0000-3000-8000-000000000000"}})
		requireCode(t, err, connect.CodeNotFound)
		assert.Equal(t, "transactionIds", errorField(t, err))
	})

	t.Run("unknown id rolls back known ones", func(t *testing.T) {
		_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txID, "stale"}})
		requireCode(t, err, connect.CodeNotFound)

		debts, err := env.store.ListOutstandingDebts(context.Background(), env.group.ID)
		require.NoError(t, err)
		assert.Len(t, debts, 2)
	})

	t.Run("ids and settle all", func(t *testing.T) {
		_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txID}, SettleAll: true})
		requireCode(t, err, connect.CodeInvalidArgument)
		assert.Equal(t, "transactionIds", errorField(t, err))
	})

	t.Run("neither", func(t *testing.T) {
		_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{})
		requireCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{SettleAll: true, Mode: "FASTEST"})
		requireCode(t, err, connect.CodeInvalidArgument)
		assert.Equal(t, "mode", errorField(t, err))
	})

	t.Run("outsider", func(t *testing.T) {
		_, err := env.execute(env.dave, &api.ExecuteSettlementsRequest{SettleAll: true})
		requireCode(t, err, connect.CodePermissionDenied)
	})
}

func TestPersonalGroupRestrictions(t *testing.T) {
	env := newTestEnv(t, models.GroupTypePersonal, models.SettlementSimplified)
	env.addExpense(t, env.carol, "30.00", models.SplitAmount, api.SplitShare{UserID: env.alice.ID, Value: "30"})
	env.addExpense(t, env.carol, "20.00", models.SplitAmount, api.SplitShare{UserID: env.bob.ID, Value: "20"})

	all := env.available(t, env.alice, "").Transactions
	require.Len(t, all, 2)
	bobs := env.available(t, env.bob, "").Transactions
	require.Equal(t, []flow{{env.bob.ID, env.carol.ID, "20.00"}}, txFlows(bobs))

	_, err := env.execute(env.bob, &api.ExecuteSettlementsRequest{SettleAll: true})
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = env.execute(env.bob, &api.ExecuteSettlementsRequest{TransactionIDs: []string{all[0].ID}})
	requireCode(t, err, connect.CodePermissionDenied)

	res, err := env.execute(env.bob, &api.ExecuteSettlementsRequest{TransactionIDs: []string{bobs[0].ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExecutedCount)
	assert.Equal(t, 0, res.RemainingCount)

	res, err = env.execute(env.alice, &api.ExecuteSettlementsRequest{SettleAll: true})
	require.NoError(t, err)
	assert.Equal(t, []flow{{env.alice.ID, env.carol.ID, "30.00"}}, txFlows(res.Executed))
}

func TestConcurrentExecutionSettlesOnce(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementDetailed)
	env.chain(t, env.alice, env.bob, env.carol)
	txID := env.available(t, env.alice, "").Transactions[0].ID

	var executed, skipped atomic.Int64
	var g errgroup.Group
	for _, actor := range []*models.User{env.alice, env.bob, env.carol} {
		g.Go(func() error {
			res, err := env.execute(actor, &api.ExecuteSettlementsRequest{TransactionIDs: []string{txID}})
			if err != nil {
				return err
			}
			executed.Add(int64(res.ExecutedCount))
			skipped.Add(int64(res.SkippedCount))
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), executed.Load())
	assert.Equal(t, int64(2), skipped.Load())
}

func TestSettlementSummaryAndAnalytics(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementDetailed)
	env.chain(t, env.alice, env.bob, env.carol)

	var aliceTx string
	for _, tx := range env.available(t, env.alice, "").Transactions {
		if tx.FromUserID == env.alice.ID {
			aliceTx = tx.ID
		}
	}
	settledAt := time.Now().Add(2 * time.Hour).Unix()
	_, err := env.execute(env.alice, &api.ExecuteSettlementsRequest{TransactionIDs: []string{aliceTx}, SettledAt: settledAt})
	require.NoError(t, err)

	group := api.SettlementScope{GroupID: env.group.ID}
	summary, err := env.settlements.GetSettlementSummary(as(env.bob), connect.NewRequest(&api.GetSettlementSummaryRequest{SettlementScope: group}))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Msg.TotalDebts)
	assert.Equal(t, 1, summary.Msg.SettledDebts)
	assert.Equal(t, 1, summary.Msg.UnsettledDebts)
	assert.Equal(t, "100.00", summary.Msg.TotalAmount)
	assert.Equal(t, "50.00", summary.Msg.SettledAmount)
	assert.Equal(t, "50.00", summary.Msg.UnsettledAmount)
	assert.Equal(t, settledAt, summary.Msg.LastSettledAt)

	analytics, err := env.settlements.GetSettlementAnalytics(as(env.bob), connect.NewRequest(&api.GetSettlementAnalyticsRequest{SettlementScope: group}))
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.Msg.TotalSettlements)
	assert.Equal(t, 1, analytics.Msg.SettledCount)
	assert.Equal(t, "50.00", analytics.Msg.TotalSettledAmount)
	assert.Equal(t, "50.00", analytics.Msg.TotalUnsettledAmount)
	assert.InDelta(t, 2.0, analytics.Msg.AvgSettlementHours, 0.01)

	mine, err := env.settlements.GetSettlementSummary(as(env.carol), connect.NewRequest(&api.GetSettlementSummaryRequest{
		SettlementScope: api.SettlementScope{UserID: env.carol.ID},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Msg.TotalDebts)
	assert.Equal(t, 0, mine.Msg.SettledDebts)
	assert.Zero(t, mine.Msg.LastSettledAt)

	settledOnly, err := env.settlements.GetSettlementHistory(as(env.alice), connect.NewRequest(&api.GetSettlementHistoryRequest{
		SettlementScope: api.SettlementScope{UserID: env.alice.ID},
		SettledOnly:     true,
	}))
	require.NoError(t, err)
	require.Len(t, settledOnly.Msg.Entries, 1)
	assert.Equal(t, aliceTx, settledOnly.Msg.Entries[0].SettlementRef)
	assert.Equal(t, settledAt, settledOnly.Msg.Entries[0].SettledAt)
}

func TestSettlementReportsEmptyAndForbidden(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)

	empty, err := env.settlements.GetSettlementAnalytics(as(env.dave), connect.NewRequest(&api.GetSettlementAnalyticsRequest{
		SettlementScope: api.SettlementScope{UserID: env.dave.ID},
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Msg.TotalSettlements)
	assert.Equal(t, "0.00", empty.Msg.TotalSettledAmount)
	assert.Zero(t, empty.Msg.AvgSettlementHours)

	_, err = env.settlements.GetSettlementSummary(as(env.bob), connect.NewRequest(&api.GetSettlementSummaryRequest{
		SettlementScope: api.SettlementScope{UserID: env.alice.ID},
	}))
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = env.settlements.GetSettlementHistory(as(env.dave), connect.NewRequest(&api.GetSettlementHistoryRequest{
		SettlementScope: api.SettlementScope{GroupID: env.group.ID},
	}))
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = env.settlements.GetSettlementSummary(as(env.bob), connect.NewRequest(&api.GetSettlementSummaryRequest{}))
	requireCode(t, err, connect.CodeInvalidArgument)
	assert.Equal(t, "groupId", errorField(t, err))
}

func TestClosureRef(t *testing.T) {
	txs := []models.SettlementTransaction{
		{ID: "t1", FromUserID: "a", ToUserID: "c"},
		{ID: "t2", FromUserID: "b", ToUserID: "d"},
	}
	tests := []struct {
		debtor, creditor, want string
	}{
		{"a", "c", "t1"},
		{"b", "x", "t2"},
		{"x", "d", "t2"},
		{"x", "y", "t1"},
	}
	for _, tt := range tests {
		got := closureRef(models.Debt{DebtorID: tt.debtor, CreditorID: tt.creditor}, txs)
		assert.Equal(t, tt.want, got, "%s->%s", tt.debtor, tt.creditor)
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "", "b", "a"}))
	assert.Empty(t, dedupe(nil))
}
