package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store storage.Store
	dir   Directory
	opts  Options
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store, dir Directory, opts Options) *ExpenseService {
	return &ExpenseService{store: store, dir: dir, opts: opts.withDefaults()}
}

// PreviewSplit runs the split calculator without persisting anything.
func (s *ExpenseService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	slog.Debug("PreviewSplit request received", "policy", req.Msg.SplitPolicy, "splits_count", len(req.Msg.Splits))

	if _, err := actingUser(ctx); err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("PreviewSplit", err)
	}

	total, splits, err := s.calculate(req.Msg.Amount, req.Msg.SplitPolicy, req.Msg.Splits)
	if err != nil {
		return nil, toConnectError("PreviewSplit", err)
	}

	return connect.NewResponse(&api.PreviewSplitResponse{
		Amount: money.Format(total),
		Splits: toAPISplits(splits),
	}), nil
}

// CreateExpense records an expense with its splits and the resulting debts.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"policy", req.Msg.SplitPolicy,
		"splits_count", len(req.Msg.Splits),
	)

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("CreateExpense", err)
	}

	expense, err := s.createExpense(ctx, userID, req.Msg)
	if err != nil {
		return nil, toConnectError("CreateExpense", err, "group_id", req.Msg.GroupID, "user_id", userID)
	}

	slog.Info("Expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", money.Format(expense.Amount),
	)
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// GetExpense retrieves a live expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetExpense", err)
	}

	expense, _, err := s.loadExpense(ctx, userID, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("GetExpense", err, "expense_id", req.Msg.ExpenseID)
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// ListExpenses lists the live expenses of a group, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("ListExpenses", err)
	}

	if _, err := authorize(ctx, s.dir, req.Msg.GroupID, userID); err != nil {
		return nil, toConnectError("ListExpenses", err, "group_id", req.Msg.GroupID)
	}
	expenses, err := s.store.ListExpenses(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("ListExpenses", apperr.Internal("list expenses", err), "group_id", req.Msg.GroupID)
	}

	out := make([]*api.Expense, len(expenses))
	for i := range expenses {
		out[i] = toAPIExpense(&expenses[i])
	}
	slog.Debug("ListExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// UpdateExpense changes an expense. Splits and debts are regenerated when the
// amount, payer or splits change.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	slog.Info("UpdateExpense request received", "expense_id", req.Msg.ExpenseID, "splits_count", len(req.Msg.Splits))

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	expense, err := s.updateExpense(ctx, userID, req.Msg)
	if err != nil {
		return nil, toConnectError("UpdateExpense", err, "expense_id", req.Msg.ExpenseID, "user_id", userID)
	}

	slog.Info("Expense updated", "expense_id", expense.ID, "amount", money.Format(expense.Amount))
	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// DeleteExpense soft deletes an expense together with its debts.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}

	deletedAt, err := s.deleteExpense(ctx, userID, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("DeleteExpense", err, "expense_id", req.Msg.ExpenseID, "user_id", userID)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ExpenseID)
	return connect.NewResponse(&api.DeleteExpenseResponse{
		ExpenseID: req.Msg.ExpenseID,
		DeletedAt: deletedAt.Unix(),
	}), nil
}

func (s *ExpenseService) calculate(amount, policy string, in []api.SplitShare) (total decimal.Decimal, splits []models.Split, err error) {
	total, err = parseAmount("amount", amount)
	if err != nil {
		return total, nil, err
	}
	p, err := parsePolicy(policy)
	if err != nil {
		return total, nil, err
	}
	shares, err := parseShares(p, in)
	if err != nil {
		return total, nil, err
	}
	splits, err = calculator.CalculateSplits(calculator.SplitInput{
		Total:    total,
		Policy:   p,
		Shares:   shares,
		Rounding: s.opts.Rounding,
	})
	return total, splits, err
}

func (s *ExpenseService) createExpense(ctx context.Context, userID string, msg *api.CreateExpenseRequest) (*models.Expense, error) {
	if _, err := authorize(ctx, s.dir, msg.GroupID, userID); err != nil {
		return nil, err
	}

	payerID := msg.PayerID
	if payerID == "" {
		payerID = userID
	}
	if err := s.requireParticipant(ctx, msg.GroupID, payerID, "payerId"); err != nil {
		return nil, err
	}
	for _, share := range msg.Splits {
		if err := s.requireParticipant(ctx, msg.GroupID, share.UserID, "splits"); err != nil {
			return nil, err
		}
	}

	total, splits, err := s.calculate(msg.Amount, msg.SplitPolicy, msg.Splits)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	expense := &models.Expense{
		GroupID:     msg.GroupID,
		Title:       msg.Title,
		Description: msg.Description,
		PayerID:     payerID,
		CreatedBy:   userID,
		Amount:      total,
		Currency:    s.currency(msg.Currency),
		Policy:      models.SplitPolicy(msg.SplitPolicy),
		Splits:      splits,
		ExpenseDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if msg.ExpenseDate > 0 {
		expense.ExpenseDate = time.Unix(msg.ExpenseDate, 0).UTC()
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}
		debts := calculator.GenerateDebts(*expense, now)
		slog.Debug("Debts generated", "expense_id", expense.ID, "count", len(debts))
		return tx.CreateDebts(ctx, debts)
	})
	if err != nil {
		return nil, apperr.Internal("create expense", err)
	}

	s.opts.Metrics.IncExpense("create")
	return expense, nil
}

func (s *ExpenseService) updateExpense(ctx context.Context, userID string, msg *api.UpdateExpenseRequest) (*models.Expense, error) {
	expense, acc, err := s.loadExpense(ctx, userID, msg.ExpenseID)
	if err != nil {
		return nil, err
	}
	if expense.CreatedBy != userID && !acc.admin {
		return nil, apperr.Forbidden("only the creator or a group admin may update expense %s", expense.ID)
	}

	if msg.Title != "" {
		expense.Title = msg.Title
	}
	if msg.Description != "" {
		expense.Description = msg.Description
	}
	if msg.Currency != "" {
		expense.Currency = msg.Currency
	}
	if msg.ExpenseDate > 0 {
		expense.ExpenseDate = time.Unix(msg.ExpenseDate, 0).UTC()
	}

	recalculate := len(msg.Splits) > 0
	if msg.PayerID != "" && msg.PayerID != expense.PayerID {
		if err := s.requireParticipant(ctx, expense.GroupID, msg.PayerID, "payerId"); err != nil {
			return nil, err
		}
		expense.PayerID = msg.PayerID
		recalculate = true
	}
	if msg.Amount != "" {
		total, err := parseAmount("amount", msg.Amount)
		if err != nil {
			return nil, err
		}
		if !total.Equal(expense.Amount) {
			expense.Amount = total
			recalculate = true
		}
	}

	if recalculate {
		var shares []calculator.Share
		if len(msg.Splits) > 0 {
			for _, share := range msg.Splits {
				if err := s.requireParticipant(ctx, expense.GroupID, share.UserID, "splits"); err != nil {
					return nil, err
				}
			}
			if shares, err = parseShares(expense.Policy, msg.Splits); err != nil {
				return nil, err
			}
		} else {
			shares = calculator.SharesFromSplits(expense.Policy, expense.Splits)
		}

		splits, err := calculator.CalculateSplits(calculator.SplitInput{
			Total:    expense.Amount,
			Policy:   expense.Policy,
			Shares:   shares,
			Rounding: s.opts.Rounding,
		})
		if err != nil {
			return nil, err
		}
		expense.Splits = splits
	}

	now := s.opts.Now()
	expense.UpdatedAt = now
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if recalculate {
			if err := requireNoSettledDebts(ctx, tx, expense.ID, "recalculated"); err != nil {
				return err
			}
		}
		if err := tx.UpdateExpense(ctx, expense); err != nil {
			return err
		}
		if !recalculate {
			return nil
		}
		if _, err := tx.DeleteOutstandingDebtsByExpense(ctx, expense.ID); err != nil {
			return err
		}
		return tx.CreateDebts(ctx, calculator.GenerateDebts(*expense, now))
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Internal("update expense", err)
	}

	s.opts.Metrics.IncExpense("update")
	return expense, nil
}

func (s *ExpenseService) deleteExpense(ctx context.Context, userID, expenseID string) (time.Time, error) {
	expense, acc, err := s.loadExpense(ctx, userID, expenseID)
	if err != nil {
		return time.Time{}, err
	}
	if expense.CreatedBy != userID && !acc.admin {
		return time.Time{}, apperr.Forbidden("only the creator or a group admin may delete expense %s", expense.ID)
	}

	now := s.opts.Now()
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := requireNoSettledDebts(ctx, tx, expense.ID, "deleted"); err != nil {
			return err
		}
		return tx.SoftDeleteExpense(ctx, expense.ID, now)
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return time.Time{}, err
		}
		if errors.Is(err, storage.ErrNotFound) {
			return time.Time{}, apperr.NotFound("expense", expenseID)
		}
		return time.Time{}, apperr.Internal("delete expense", err)
	}

	s.opts.Metrics.IncExpense("delete")
	return now, nil
}

// loadExpense returns a live expense the user may see, with the user's access to its group.
func (s *ExpenseService) loadExpense(ctx context.Context, userID, expenseID string) (*models.Expense, *access, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperr.NotFound("expense", expenseID)
	}
	if err != nil {
		return nil, nil, apperr.Internal("load expense", err)
	}
	if expense.IsDeleted() {
		return nil, nil, apperr.NotFound("expense", expenseID)
	}

	acc, err := authorize(ctx, s.dir, expense.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	return expense, acc, nil
}

// requireParticipant checks that userID exists and is an active member of the group.
func (s *ExpenseService) requireParticipant(ctx context.Context, groupID, userID, field string) error {
	exists, err := s.dir.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.Validation(field, "unknown user %q", userID)
	}
	active, err := s.dir.IsActiveMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !active {
		return apperr.Validation(field, "user %q is not an active member of the group", userID)
	}
	return nil
}

func (s *ExpenseService) currency(requested string) string {
	if requested != "" {
		return requested
	}
	return s.opts.DefaultCurrency
}

// requireNoSettledDebts keeps settled history from being regenerated or hidden.
func requireNoSettledDebts(ctx context.Context, tx storage.Tx, expenseID, verb string) error {
	debts, err := tx.ListDebtsByExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	for _, d := range debts {
		if d.IsSettled() {
			return apperr.Validation("expenseId", "expense %s has settled debts and cannot be %s", expenseID, verb)
		}
	}
	return nil
}
