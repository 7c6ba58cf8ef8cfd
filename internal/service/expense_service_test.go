package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
)

func splitAmounts(splits []api.Split) map[string]string {
	out := make(map[string]string, len(splits))
	for _, s := range splits {
		out[s.UserID] = s.Amount
	}
	return out
}

func TestPreviewSplit(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)

	resp, err := env.expenses.PreviewSplit(as(env.bob), connect.NewRequest(&api.PreviewSplitRequest{
		Amount:      "90",
		SplitPolicy: "PERCENTAGE",
		Splits: []api.SplitShare{
			{UserID: env.alice.ID, Value: "60"},
			{UserID: env.bob.ID, Value: "40"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, "90.00", resp.Msg.Amount)
	assert.Equal(t, map[string]string{env.alice.ID: "54.00", env.bob.ID: "36.00"}, splitAmounts(resp.Msg.Splits))

	// Nothing is persisted.
	list, err := env.expenses.ListExpenses(as(env.bob), connect.NewRequest(&api.ListExpensesRequest{GroupID: env.group.ID}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Expenses)
}

func TestCreateExpense(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	ctx := context.Background()

	exp := env.addExpense(t, env.alice, "100.00", models.SplitEqual, share(env.alice), share(env.bob), share(env.carol))
	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, "100.00", exp.Amount)
	assert.Equal(t, "USD", exp.Currency)
	assert.Equal(t, env.alice.ID, exp.CreatedBy)
	assert.Equal(t, map[string]string{
		env.alice.ID: "33.34",
		env.bob.ID:   "33.33",
		env.carol.ID: "33.33",
	}, splitAmounts(exp.Splits))

	debts, err := env.store.ListDebtsByExpense(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, debts, 2)
	for _, d := range debts {
		assert.Equal(t, env.alice.ID, d.CreditorID)
		assert.Equal(t, "33.33", d.Amount.StringFixed(2))
	}

	got, err := env.expenses.GetExpense(as(env.carol), connect.NewRequest(&api.GetExpenseRequest{ExpenseID: exp.ID}))
	require.NoError(t, err)
	assert.Equal(t, exp.Splits, got.Msg.Expense.Splits)
}

func TestCreateExpensePayerDefaultsToActor(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)

	resp, err := env.expenses.CreateExpense(as(env.bob), connect.NewRequest(&api.CreateExpenseRequest{
		GroupID:     env.group.ID,
		Title:       "Taxi",
		Amount:      "30",
		Currency:    "EUR",
		SplitPolicy: "EQUAL",
		Splits:      []api.SplitShare{share(env.bob), share(env.carol)},
	}))
	require.NoError(t, err)
	assert.Equal(t, env.bob.ID, resp.Msg.Expense.PayerID)
	assert.Equal(t, "EUR", resp.Msg.Expense.Currency)
}

func TestCreateExpenseRejections(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)

	tests := []struct {
		name  string
		actor *models.User
		req   *api.CreateExpenseRequest
		code  connect.Code
		field string
	}{
		{
			name:  "missing title",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Amount: "10", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice)},
			},
			code:  connect.CodeInvalidArgument,
			field: "title",
		},
		{
			name:  "participant outside group",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "10", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice), share(env.dave)},
			},
			code:  connect.CodeInvalidArgument,
			field: "splits",
		},
		{
			name:  "unknown participant",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "10", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{{UserID: "ghost"}},
			},
			code:  connect.CodeInvalidArgument,
			field: "splits",
		},
		{
			name:  "payer outside group",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", PayerID: env.dave.ID, Amount: "10", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice)},
			},
			code:  connect.CodeInvalidArgument,
			field: "payerId",
		},
		{
			name:  "percentages off",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "10", SplitPolicy: "PERCENTAGE",
				Splits: []api.SplitShare{{UserID: env.alice.ID, Value: "50"}, {UserID: env.bob.ID, Value: "49"}},
			},
			code:  connect.CodeInvalidArgument,
			field: "splits",
		},
		{
			name:  "too many decimals",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "10.001", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice)},
			},
			code:  connect.CodeInvalidArgument,
			field: "amount",
		},
		{
			name:  "amount beyond int64 cents",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "100000000000000000000.00", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice), share(env.bob)},
			},
			code:  connect.CodeInvalidArgument,
			field: "amount",
		},
		{
			name:  "amount above maximum",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "1000000000000.00", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice), share(env.bob)},
			},
			code:  connect.CodeInvalidArgument,
			field: "amount",
		},
		{
			name:  "share above maximum",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "10", SplitPolicy: "AMOUNT",
				Splits: []api.SplitShare{{UserID: env.alice.ID, Value: "100000000000000000000"}},
			},
			code:  connect.CodeInvalidArgument,
			field: "splits",
		},
		{
			name:  "non-member actor",
			actor: env.dave,
			req: &api.CreateExpenseRequest{
				GroupID: env.group.ID, Title: "Lunch", Amount: "10", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice)},
			},
			code: connect.CodePermissionDenied,
		},
		{
			name:  "unknown group",
			actor: env.alice,
			req: &api.CreateExpenseRequest{
				GroupID: "missing", Title: "Lunch", Amount: "10", SplitPolicy: "EQUAL",
				Splits: []api.SplitShare{share(env.alice)},
			},
			code:  connect.CodeNotFound,
			field: "group",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.expenses.CreateExpense(as(tt.actor), connect.NewRequest(tt.req))
			requireCode(t, err, tt.code)
			if tt.field != "" {
				assert.Equal(t, tt.field, errorField(t, err))
			}
		})
	}

	list, err := env.expenses.ListExpenses(as(env.alice), connect.NewRequest(&api.ListExpensesRequest{GroupID: env.group.ID}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Expenses)
}

func TestUpdateExpenseRecalculates(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	ctx := context.Background()
	exp := env.addExpense(t, env.bob, "100.00", models.SplitEqual, share(env.alice), share(env.bob), share(env.carol))

	resp, err := env.expenses.UpdateExpense(as(env.bob), connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: exp.ID,
		Title:     "Dinner and drinks",
		Amount:    "90",
	}))
	require.NoError(t, err)
	updated := resp.Msg.Expense
	assert.Equal(t, "Dinner and drinks", updated.Title)
	assert.Equal(t, "90.00", updated.Amount)
	assert.Equal(t, map[string]string{
		env.alice.ID: "30.00",
		env.bob.ID:   "30.00",
		env.carol.ID: "30.00",
	}, splitAmounts(updated.Splits))

	debts, err := env.store.ListDebtsByExpense(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, debts, 2)
	for _, d := range debts {
		assert.Equal(t, "30.00", d.Amount.StringFixed(2))
		assert.Equal(t, env.bob.ID, d.CreditorID)
	}

	// New splits replace the participants.
	resp, err = env.expenses.UpdateExpense(as(env.bob), connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: exp.ID,
		Splits:    []api.SplitShare{share(env.bob), share(env.carol)},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{env.bob.ID: "45.00", env.carol.ID: "45.00"}, splitAmounts(resp.Msg.Expense.Splits))

	debts, err = env.store.ListDebtsByExpense(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, env.carol.ID, debts[0].DebtorID)
}

func TestUpdateExpenseTitleKeepsDebts(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	ctx := context.Background()
	exp := env.addExpense(t, env.bob, "20.00", models.SplitEqual, share(env.alice), share(env.bob))

	before, err := env.store.ListDebtsByExpense(ctx, exp.ID)
	require.NoError(t, err)

	_, err = env.expenses.UpdateExpense(as(env.bob), connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: exp.ID,
		Title:     "Brunch",
	}))
	require.NoError(t, err)

	after, err := env.store.ListDebtsByExpense(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateExpensePermissions(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	exp := env.addExpense(t, env.bob, "20.00", models.SplitEqual, share(env.alice), share(env.bob))

	_, err := env.expenses.UpdateExpense(as(env.carol), connect.NewRequest(&api.UpdateExpenseRequest{ExpenseID: exp.ID, Title: "Mine now"}))
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = env.expenses.UpdateExpense(as(env.dave), connect.NewRequest(&api.UpdateExpenseRequest{ExpenseID: exp.ID, Title: "Mine now"}))
	requireCode(t, err, connect.CodePermissionDenied)

	// Admins may edit any expense.
	_, err = env.expenses.UpdateExpense(as(env.alice), connect.NewRequest(&api.UpdateExpenseRequest{ExpenseID: exp.ID, Title: "Fixed"}))
	require.NoError(t, err)

	_, err = env.expenses.DeleteExpense(as(env.carol), connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: exp.ID}))
	requireCode(t, err, connect.CodePermissionDenied)
}

func TestDeleteExpense(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	ctx := context.Background()
	exp := env.addExpense(t, env.bob, "20.00", models.SplitEqual, share(env.alice), share(env.bob))

	resp, err := env.expenses.DeleteExpense(as(env.bob), connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: exp.ID}))
	require.NoError(t, err)
	assert.Equal(t, exp.ID, resp.Msg.ExpenseID)
	assert.NotZero(t, resp.Msg.DeletedAt)

	_, err = env.expenses.GetExpense(as(env.bob), connect.NewRequest(&api.GetExpenseRequest{ExpenseID: exp.ID}))
	requireCode(t, err, connect.CodeNotFound)

	_, err = env.expenses.DeleteExpense(as(env.bob), connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: exp.ID}))
	requireCode(t, err, connect.CodeNotFound)

	debts, err := env.store.ListOutstandingDebts(ctx, env.group.ID)
	require.NoError(t, err)
	assert.Empty(t, debts)
}

func TestSettledExpenseIsFrozen(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementDetailed)
	exp := env.addExpense(t, env.bob, "20.00", models.SplitEqual, share(env.alice), share(env.bob))

	_, err := env.settlements.ExecuteSettlements(as(env.alice), connect.NewRequest(&api.ExecuteSettlementsRequest{
		GroupID:   env.group.ID,
		SettleAll: true,
	}))
	require.NoError(t, err)

	_, err = env.expenses.UpdateExpense(as(env.bob), connect.NewRequest(&api.UpdateExpenseRequest{ExpenseID: exp.ID, Amount: "25"}))
	requireCode(t, err, connect.CodeInvalidArgument)
	assert.Equal(t, "expenseId", errorField(t, err))

	_, err = env.expenses.DeleteExpense(as(env.bob), connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: exp.ID}))
	requireCode(t, err, connect.CodeInvalidArgument)

	// Non-monetary edits stay allowed.
	_, err = env.expenses.UpdateExpense(as(env.bob), connect.NewRequest(&api.UpdateExpenseRequest{ExpenseID: exp.ID, Title: "Settled dinner"}))
	require.NoError(t, err)
}

func TestListExpenses(t *testing.T) {
	env := newTestEnv(t, models.GroupTypeGroup, models.SettlementSimplified)
	env.addExpense(t, env.bob, "20.00", models.SplitEqual, share(env.alice), share(env.bob))
	env.addExpense(t, env.carol, "12.00", models.SplitEqual, share(env.carol), share(env.bob))

	resp, err := env.expenses.ListExpenses(as(env.alice), connect.NewRequest(&api.ListExpensesRequest{GroupID: env.group.ID}))
	require.NoError(t, err)
	assert.Len(t, resp.Msg.Expenses, 2)

	_, err = env.expenses.ListExpenses(as(env.dave), connect.NewRequest(&api.ListExpensesRequest{GroupID: env.group.ID}))
	requireCode(t, err, connect.CodePermissionDenied)
}
