package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = `id, group_id, title, description, payer_id, created_by, amount_cents, currency,
	split_policy, expense_date, created_at, updated_at, deleted_at`

// CreateExpense persists a new expense and its splits.
// The expense.ID field will be populated by the store when empty.
func (q *queries) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	ts := now()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = ts
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = expense.CreatedAt
	}

	amount, err := money.ToCents(expense.Amount)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	_, err = q.exec(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		expense.ID, expense.GroupID, expense.Title, expense.Description, expense.PayerID, expense.CreatedBy,
		amount, expense.Currency, string(expense.Policy),
		unix(expense.ExpenseDate), unix(expense.CreatedAt), unix(expense.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	return q.insertSplits(ctx, expense)
}

// UpdateExpense rewrites the expense row and replaces all of its splits.
func (q *queries) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	amount, err := money.ToCents(expense.Amount)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = now()
	}

	res, err := q.exec(ctx,
		`UPDATE expenses
		SET title = ?, description = ?, payer_id = ?, amount_cents = ?, currency = ?, expense_date = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		expense.Title, expense.Description, expense.PayerID, amount, expense.Currency,
		unix(expense.ExpenseDate), unix(expense.UpdatedAt), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	if _, err := q.exec(ctx, "DELETE FROM splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	return q.insertSplits(ctx, expense)
}

func (q *queries) insertSplits(ctx context.Context, expense *models.Expense) error {
	for i := range expense.Splits {
		s := &expense.Splits[i]
		s.ExpenseID = expense.ID

		amount, err := money.ToCents(s.Amount)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
		bp, err := money.ToCents(s.Percentage)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}

		_, err = q.exec(ctx,
			"INSERT INTO splits (expense_id, user_id, seq, percentage_bp, amount_cents) VALUES (?, ?, ?, ?, ?)",
			s.ExpenseID, s.UserID, i, bp, amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

// SoftDeleteExpense marks the expense and its debts deleted.
func (q *queries) SoftDeleteExpense(ctx context.Context, expenseID string, at time.Time) error {
	res, err := q.exec(ctx,
		"UPDATE expenses SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		unix(at), unix(at), expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}

	if _, err := q.exec(ctx,
		"UPDATE debts SET deleted_at = ? WHERE expense_id = ? AND deleted_at IS NULL",
		unix(at), expenseID,
	); err != nil {
		return fmt.Errorf("failed to delete debts: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (q *queries) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := q.queryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	splits, err := q.listSplits(ctx,
		"SELECT expense_id, user_id, percentage_bp, amount_cents FROM splits WHERE expense_id = ? ORDER BY seq",
		expenseID,
	)
	if err != nil {
		return nil, err
	}
	expense.Splits = splits[expenseID]
	return expense, nil
}

// ListExpenses returns the live expenses of a group with their splits, newest first.
func (q *queries) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := q.query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? AND deleted_at IS NULL ORDER BY expense_date DESC, created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	splits, err := q.listSplits(ctx,
		`SELECT s.expense_id, s.user_id, s.percentage_bp, s.amount_cents
		FROM splits s JOIN expenses e ON e.id = s.expense_id
		WHERE e.group_id = ? AND e.deleted_at IS NULL
		ORDER BY s.expense_id, s.seq`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Splits = splits[expenses[i].ID]
	}
	return expenses, nil
}

func (q *queries) listSplits(ctx context.Context, query string, args ...any) (map[string][]models.Split, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	byExpense := make(map[string][]models.Split)
	for rows.Next() {
		var (
			s         models.Split
			bp, cents int64
		)
		if err := rows.Scan(&s.ExpenseID, &s.UserID, &bp, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		s.Percentage = money.FromCents(bp)
		s.Amount = money.FromCents(cents)
		byExpense[s.ExpenseID] = append(byExpense[s.ExpenseID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return byExpense, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	var (
		e                            models.Expense
		cents                        int64
		policy                       string
		expenseDate, created, update int64
		deleted                      sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.GroupID, &e.Title, &e.Description, &e.PayerID, &e.CreatedBy,
		&cents, &e.Currency, &policy, &expenseDate, &created, &update, &deleted); err != nil {
		return nil, err
	}
	e.Amount = money.FromCents(cents)
	e.Policy = models.SplitPolicy(policy)
	e.ExpenseDate = fromUnix(expenseDate)
	e.CreatedAt = fromUnix(created)
	e.UpdatedAt = fromUnix(update)
	e.DeletedAt = fromNullUnix(deleted)
	return &e, nil
}
