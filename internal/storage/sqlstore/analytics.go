package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// scopeClause filters debts aliased as d by group or by participant.
func scopeClause(scope models.DebtScope) (string, []any) {
	if scope.GroupID != "" {
		return "d.group_id = ?", []any{scope.GroupID}
	}
	return "(d.debtor_id = ? OR d.creditor_id = ?)", []any{scope.UserID, scope.UserID}
}

// ListDebtHistory returns debts in scope, most recent activity first.
func (q *queries) ListDebtHistory(ctx context.Context, filter models.HistoryFilter) ([]models.DebtRecord, error) {
	where, args := scopeClause(filter.Scope)
	query := `SELECT d.id, d.group_id, d.expense_id, d.debtor_id, d.creditor_id, d.creditor_kind, d.amount_cents,
		d.payment_method, d.notes, d.settlement_ref, d.created_at, d.settled_at, e.title, e.currency
		FROM debts d JOIN expenses e ON e.id = d.expense_id
		WHERE d.deleted_at IS NULL AND ` + where
	if filter.SettledOnly {
		query += " AND d.settled_at IS NOT NULL"
	}
	query += " ORDER BY COALESCE(d.settled_at, d.created_at) DESC, d.id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement history: %w", err)
	}
	defer rows.Close()

	var records []models.DebtRecord
	for rows.Next() {
		var title, currency string
		d, err := scanDebt(rows, &title, &currency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement history: %w", err)
		}
		records = append(records, models.DebtRecord{Debt: *d, ExpenseTitle: title, ExpenseCurrency: currency})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement history: %w", err)
	}
	return records, nil
}

// AggregateDebts computes the settlement counters of a scope. Empty scopes
// yield zero values. A debt stamped before its creation counts as settled
// instantly.
func (q *queries) AggregateDebts(ctx context.Context, scope models.DebtScope) (*models.DebtAggregates, error) {
	where, args := scopeClause(scope)
	query := `SELECT
		COUNT(*),
		CAST(COALESCE(SUM(CASE WHEN d.settled_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(SUM(CASE WHEN d.settled_at IS NOT NULL THEN d.amount_cents ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(SUM(CASE WHEN d.settled_at IS NULL THEN d.amount_cents ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(AVG(CASE
			WHEN d.settled_at IS NULL THEN NULL
			WHEN d.settled_at > d.created_at THEN d.settled_at - d.created_at
			ELSE 0 END), 0) AS DOUBLE PRECISION),
		MAX(d.settled_at)
		FROM debts d
		WHERE d.deleted_at IS NULL AND ` + where

	var (
		agg                  models.DebtAggregates
		settledC, unsettledC int64
		avgSeconds           float64
		lastSettled          sql.NullInt64
	)
	err := q.queryRow(ctx, query, args...).Scan(
		&agg.TotalCount, &agg.SettledCount, &settledC, &unsettledC, &avgSeconds, &lastSettled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate debts: %w", err)
	}
	agg.SettledAmount = money.FromCents(settledC)
	agg.UnsettledAmount = money.FromCents(unsettledC)
	agg.AvgHoursToSettle = avgSeconds / 3600
	agg.LastSettledAt = fromNullUnix(lastSettled)
	return &agg, nil
}
