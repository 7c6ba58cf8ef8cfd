package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

const debtColumns = `id, group_id, expense_id, debtor_id, creditor_id, creditor_kind, amount_cents,
	payment_method, notes, settlement_ref, created_at, settled_at`

// CreateDebts inserts debts, generating missing ids.
func (q *queries) CreateDebts(ctx context.Context, debts []models.Debt) error {
	for i := range debts {
		d := &debts[i]
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now()
		}
		if d.CreditorKind == "" {
			d.CreditorKind = models.CreditorUser
		}

		cents, err := money.ToCents(d.Amount)
		if err != nil {
			return fmt.Errorf("failed to insert debt: %w", err)
		}

		_, err = q.exec(ctx,
			`INSERT INTO debts (`+debtColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.GroupID, d.ExpenseID, d.DebtorID, d.CreditorID, string(d.CreditorKind), cents,
			d.PaymentMethod, d.Notes, d.SettlementRef, unix(d.CreatedAt), nullUnix(d.SettledAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert debt: %w", err)
		}
	}
	return nil
}

// DeleteOutstandingDebtsByExpense removes unsettled debts of an expense.
func (q *queries) DeleteOutstandingDebtsByExpense(ctx context.Context, expenseID string) (int64, error) {
	res, err := q.exec(ctx,
		"DELETE FROM debts WHERE expense_id = ? AND settled_at IS NULL AND deleted_at IS NULL",
		expenseID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete debts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete debts: %w", err)
	}
	return n, nil
}

// ListDebtsByExpense returns the live debts of an expense.
func (q *queries) ListDebtsByExpense(ctx context.Context, expenseID string) ([]models.Debt, error) {
	return q.listDebts(ctx,
		"SELECT "+debtColumns+" FROM debts WHERE expense_id = ? AND deleted_at IS NULL ORDER BY created_at, id",
		expenseID,
	)
}

// ListOutstandingDebts returns the live, unsettled debts of a group.
func (q *queries) ListOutstandingDebts(ctx context.Context, groupID string) ([]models.Debt, error) {
	return q.listDebts(ctx, outstandingDebtsQuery, groupID)
}

// LockOutstandingDebts is ListOutstandingDebts holding row locks until the transaction ends.
func (q *queries) LockOutstandingDebts(ctx context.Context, groupID string) ([]models.Debt, error) {
	return q.listDebts(ctx, outstandingDebtsQuery+q.d.lockSuffix, groupID)
}

// LockOutstandingDebtsBetween locks the unsettled debts of one directed pair.
func (q *queries) LockOutstandingDebtsBetween(ctx context.Context, groupID, debtorID, creditorID string) ([]models.Debt, error) {
	return q.listDebts(ctx,
		`SELECT `+debtColumns+` FROM debts
		WHERE group_id = ? AND debtor_id = ? AND creditor_id = ? AND settled_at IS NULL AND deleted_at IS NULL
		ORDER BY created_at, id`+q.d.lockSuffix,
		groupID, debtorID, creditorID,
	)
}

const outstandingDebtsQuery = `SELECT ` + debtColumns + ` FROM debts
	WHERE group_id = ? AND settled_at IS NULL AND deleted_at IS NULL
	ORDER BY created_at, id`

// MarkDebtsSettled stamps unsettled debts and reports how many changed.
// Debts settled by someone else in the meantime are left untouched.
func (q *queries) MarkDebtsSettled(ctx context.Context, debtIDs []string, stamp models.SettlementStamp) (int64, error) {
	if len(debtIDs) == 0 {
		return 0, nil
	}

	args := []any{unix(stamp.SettledAt), stamp.PaymentMethod, stamp.Notes, stamp.Ref}
	for _, id := range debtIDs {
		args = append(args, id)
	}
	res, err := q.exec(ctx,
		`UPDATE debts SET settled_at = ?, payment_method = ?, notes = ?, settlement_ref = ?
		WHERE id IN (`+placeholders(len(debtIDs))+`) AND settled_at IS NULL AND deleted_at IS NULL`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to settle debts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to settle debts: %w", err)
	}
	return n, nil
}

// RecordSettlements appends executed settlement transactions to the audit log.
func (q *queries) RecordSettlements(ctx context.Context, records []models.SettlementRecord) error {
	for i := range records {
		r := &records[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		cents, err := money.ToCents(r.Amount)
		if err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}
		_, err = q.exec(ctx,
			`INSERT INTO settlement_records (id, settlement_id, group_id, from_user_id, to_user_id, amount_cents,
				mode, executed_by, payment_method, notes, settled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.SettlementID, r.GroupID, r.FromUserID, r.ToUserID, cents,
			string(r.Mode), r.ExecutedBy, r.PaymentMethod, r.Notes, unix(r.SettledAt),
		)
		if err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}
	}
	return nil
}

// SettlementExecuted reports whether settlementID was executed in the group before.
func (q *queries) SettlementExecuted(ctx context.Context, groupID, settlementID string) (bool, error) {
	var n int
	err := q.queryRow(ctx,
		"SELECT COUNT(*) FROM settlement_records WHERE group_id = ? AND settlement_id = ?",
		groupID, settlementID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up settlement record: %w", err)
	}
	return n > 0, nil
}

func (q *queries) listDebts(ctx context.Context, query string, args ...any) ([]models.Debt, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	var debts []models.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debts: %w", err)
	}
	return debts, nil
}

func scanDebt(row scanner, extra ...any) (*models.Debt, error) {
	var (
		d              models.Debt
		kind           string
		cents, created int64
		settled        sql.NullInt64
	)
	dest := append([]any{&d.ID, &d.GroupID, &d.ExpenseID, &d.DebtorID, &d.CreditorID, &kind, &cents,
		&d.PaymentMethod, &d.Notes, &d.SettlementRef, &created, &settled}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	d.CreditorKind = models.CreditorKind(kind)
	d.Amount = money.FromCents(cents)
	d.CreatedAt = fromUnix(created)
	d.SettledAt = fromNullUnix(settled)
	return &d, nil
}
