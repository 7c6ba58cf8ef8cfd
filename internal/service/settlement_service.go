package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
)

// SettlementService implements the Connect SettlementService: proposing
// settlements, executing them and reporting on settled debts.
type SettlementService struct {
	store storage.Store
	dir   Directory
	opts  Options
}

func NewSettlementService(store storage.Store, dir Directory, opts Options) *SettlementService {
	return &SettlementService{store: store, dir: dir, opts: opts.withDefaults()}
}

// GetAvailableSettlements returns the payments that would clear the group's
// outstanding debts under the requested (or the group's) mode.
func (s *SettlementService) GetAvailableSettlements(ctx context.Context, req *connect.Request[api.GetAvailableSettlementsRequest]) (*connect.Response[api.GetAvailableSettlementsResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetAvailableSettlements", err)
	}

	mode, txs, err := s.available(ctx, userID, req.Msg.GroupID, req.Msg.Mode)
	if err != nil {
		return nil, toConnectError("GetAvailableSettlements", err, "group_id", req.Msg.GroupID)
	}

	slog.Debug("Settlements generated", "group_id", req.Msg.GroupID, "mode", mode, "count", len(txs))
	return connect.NewResponse(&api.GetAvailableSettlementsResponse{
		GroupID:      req.Msg.GroupID,
		Mode:         string(mode),
		Transactions: toAPITransactions(txs),
		TotalAmount:  money.Format(calculator.TotalAmount(txs)),
	}), nil
}

// ExecuteSettlements marks the debts behind the selected transactions settled.
// Transactions settled earlier are skipped rather than rejected.
func (s *SettlementService) ExecuteSettlements(ctx context.Context, req *connect.Request[api.ExecuteSettlementsRequest]) (*connect.Response[api.ExecuteSettlementsResponse], error) {
	slog.Info("ExecuteSettlements request received",
		"group_id", req.Msg.GroupID,
		"settle_all", req.Msg.SettleAll,
		"transactions_count", len(req.Msg.TransactionIDs),
	)

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("ExecuteSettlements", err)
	}

	settlement := models.SettlementRequest{
		TransactionIDs: req.Msg.TransactionIDs,
		SettleAll:      req.Msg.SettleAll,
		Mode:           models.SettlementMode(req.Msg.Mode),
		PaymentMethod:  req.Msg.PaymentMethod,
		Notes:          req.Msg.Notes,
	}
	if req.Msg.SettledAt > 0 {
		settlement.SettledAt = time.Unix(req.Msg.SettledAt, 0).UTC()
	}

	result, err := s.execute(ctx, userID, req.Msg.GroupID, settlement)
	if err != nil {
		return nil, toConnectError("ExecuteSettlements", err, "group_id", req.Msg.GroupID, "user_id", userID)
	}

	return connect.NewResponse(&api.ExecuteSettlementsResponse{
		GroupID:            result.GroupID,
		Mode:               string(result.Mode),
		Executed:           toAPITransactions(result.Executed),
		Remaining:          toAPITransactions(result.Remaining),
		TotalSettledAmount: money.Format(result.TotalSettledAmount),
		ExecutedCount:      result.ExecutedCount,
		RemainingCount:     result.RemainingCount,
		SkippedCount:       result.SkippedCount,
		Timestamp:          result.Timestamp.Unix(),
	}), nil
}

// GetSettlementSummary reports settled vs outstanding debts of a group or user.
func (s *SettlementService) GetSettlementSummary(ctx context.Context, req *connect.Request[api.GetSettlementSummaryRequest]) (*connect.Response[api.GetSettlementSummaryResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetSettlementSummary", err)
	}

	summary, err := s.summary(ctx, userID, toScope(req.Msg.SettlementScope))
	if err != nil {
		return nil, toConnectError("GetSettlementSummary", err, "group_id", req.Msg.GroupID, "user_id", req.Msg.UserID)
	}

	return connect.NewResponse(&api.GetSettlementSummaryResponse{
		GroupID:         summary.Scope.GroupID,
		UserID:          summary.Scope.UserID,
		TotalDebts:      summary.TotalDebts,
		SettledDebts:    summary.SettledDebts,
		UnsettledDebts:  summary.UnsettledDebts,
		TotalAmount:     money.Format(summary.TotalAmount),
		SettledAmount:   money.Format(summary.SettledAmount),
		UnsettledAmount: money.Format(summary.UnsettledAmount),
		LastSettledAt:   unixOrZero(summary.LastSettledAt),
	}), nil
}

// GetSettlementAnalytics reports settlement counters and speed.
func (s *SettlementService) GetSettlementAnalytics(ctx context.Context, req *connect.Request[api.GetSettlementAnalyticsRequest]) (*connect.Response[api.GetSettlementAnalyticsResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetSettlementAnalytics", err)
	}

	analytics, err := s.analytics(ctx, userID, toScope(req.Msg.SettlementScope))
	if err != nil {
		return nil, toConnectError("GetSettlementAnalytics", err, "group_id", req.Msg.GroupID, "user_id", req.Msg.UserID)
	}

	return connect.NewResponse(&api.GetSettlementAnalyticsResponse{
		GroupID:              analytics.Scope.GroupID,
		UserID:               analytics.Scope.UserID,
		TotalSettlements:     analytics.TotalSettlements,
		SettledCount:         analytics.SettledCount,
		UnsettledCount:       analytics.UnsettledCount,
		TotalSettledAmount:   money.Format(analytics.TotalSettledAmount),
		TotalUnsettledAmount: money.Format(analytics.TotalUnsettledAmount),
		AvgSettlementHours:   analytics.AvgSettlementHours,
	}), nil
}

// GetSettlementHistory lists debts with their settlement state, newest first.
func (s *SettlementService) GetSettlementHistory(ctx context.Context, req *connect.Request[api.GetSettlementHistoryRequest]) (*connect.Response[api.GetSettlementHistoryResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetSettlementHistory", err)
	}

	scope := toScope(req.Msg.SettlementScope)
	if err := s.authorizeScope(ctx, userID, scope); err != nil {
		return nil, toConnectError("GetSettlementHistory", err, "group_id", scope.GroupID, "user_id", scope.UserID)
	}
	records, err := s.store.ListDebtHistory(ctx, models.HistoryFilter{
		Scope:       scope,
		SettledOnly: req.Msg.SettledOnly,
		Limit:       req.Msg.Limit,
		Offset:      req.Msg.Offset,
	})
	if err != nil {
		return nil, toConnectError("GetSettlementHistory", apperr.Internal("list settlement history", err))
	}

	return connect.NewResponse(&api.GetSettlementHistoryResponse{Entries: toAPIHistory(records)}), nil
}

func (s *SettlementService) available(ctx context.Context, userID, groupID, requestedMode string) (models.SettlementMode, []models.SettlementTransaction, error) {
	acc, err := authorize(ctx, s.dir, groupID, userID)
	if err != nil {
		return "", nil, err
	}
	mode, err := resolveMode(requestedMode, acc.group, s.opts.DefaultMode)
	if err != nil {
		return "", nil, err
	}

	debts, err := s.store.ListOutstandingDebts(ctx, groupID)
	if err != nil {
		return "", nil, apperr.Internal("list outstanding debts", err)
	}
	txs, err := calculator.GenerateSettlements(groupID, mode, debts)
	if err != nil {
		return "", nil, err
	}
	return mode, acc.visible(userID, txs), nil
}

// execute applies a settlement request in one unit of work. The live
// transaction list is regenerated from locked debts, so ids are checked
// against current state rather than a client snapshot.
func (s *SettlementService) execute(ctx context.Context, userID, groupID string, req models.SettlementRequest) (*models.SettlementResult, error) {
	ids := dedupe(req.TransactionIDs)
	if req.SettleAll == (len(ids) > 0) {
		return nil, apperr.Validation("transactionIds", "exactly one of transactionIds or settleAll is required")
	}

	acc, err := authorize(ctx, s.dir, groupID, userID)
	if err != nil {
		return nil, err
	}
	mode, err := resolveMode(string(req.Mode), acc.group, s.opts.DefaultMode)
	if err != nil {
		return nil, err
	}
	restricted := acc.restricted()
	if restricted && req.SettleAll {
		return nil, apperr.Forbidden("only an admin may settle all transactions of personal group %s", groupID)
	}

	now := s.opts.Now()
	settledAt := req.SettledAt
	if settledAt.IsZero() {
		settledAt = now
	}
	stamp := func(ref string) models.SettlementStamp {
		return models.SettlementStamp{Ref: ref, SettledAt: settledAt, PaymentMethod: req.PaymentMethod, Notes: req.Notes}
	}

	result := &models.SettlementResult{GroupID: groupID, Mode: mode, Timestamp: now}
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		debts, err := tx.LockOutstandingDebts(ctx, groupID)
		if err != nil {
			return err
		}
		live, err := calculator.GenerateSettlements(groupID, mode, debts)
		if err != nil {
			return err
		}

		selected := live
		if !req.SettleAll {
			byID := make(map[string]models.SettlementTransaction, len(live))
			for _, t := range live {
				byID[t.ID] = t
			}
			selected = selected[:0:0]
			for _, id := range ids {
				if t, ok := byID[id]; ok {
					selected = append(selected, t)
					continue
				}
				done, err := tx.SettlementExecuted(ctx, groupID, id)
				if err != nil {
					return err
				}
				if !done {
					return apperr.ErrSettlementTransactionNotFound
				}
				result.SkippedCount++
			}
		}

		if restricted {
			for _, t := range selected {
				if !t.Involves(userID) {
					return apperr.Forbidden("user %s is not a party to settlement transaction %s", userID, t.ID)
				}
			}
		}

		var executed []models.SettlementTransaction
		switch {
		case mode == models.SettlementSimplified && req.SettleAll && len(live) == 0 && len(debts) > 0:
			// Balances already cancel out; no payment is due but the debts are still open.
			if err := checkSettledAt(req.SettledAt, debts); err != nil {
				return err
			}
			if _, err := tx.MarkDebtsSettled(ctx, debtIDs(debts), stamp(calculator.NettedOutID(groupID, debts))); err != nil {
				return err
			}
		case mode == models.SettlementSimplified && len(selected) > 0 && len(selected) == len(live):
			// Every netted payment is being made, so every outstanding debt is discharged.
			if err := checkSettledAt(req.SettledAt, debts); err != nil {
				return err
			}
			byRef := make(map[string][]string)
			for _, d := range debts {
				ref := closureRef(d, selected)
				byRef[ref] = append(byRef[ref], d.ID)
			}
			for _, t := range selected {
				if _, err := tx.MarkDebtsSettled(ctx, byRef[t.ID], stamp(t.ID)); err != nil {
					return err
				}
			}
			executed = selected
		default:
			for _, t := range selected {
				pair, err := tx.LockOutstandingDebtsBetween(ctx, groupID, t.FromUserID, t.ToUserID)
				if err != nil {
					return err
				}
				if len(pair) == 0 {
					result.SkippedCount++
					continue
				}
				if err := checkSettledAt(req.SettledAt, pair); err != nil {
					return err
				}
				n, err := tx.MarkDebtsSettled(ctx, debtIDs(pair), stamp(t.ID))
				if err != nil {
					return err
				}
				if n == 0 {
					result.SkippedCount++
					continue
				}
				executed = append(executed, t)
			}
		}

		records := make([]models.SettlementRecord, 0, len(executed))
		for i := range executed {
			t := &executed[i]
			t.Status = models.SettlementSettled
			t.ExecutedAt = &settledAt
			records = append(records, models.SettlementRecord{
				SettlementID:  t.ID,
				GroupID:       groupID,
				FromUserID:    t.FromUserID,
				ToUserID:      t.ToUserID,
				Amount:        t.Amount,
				Mode:          mode,
				ExecutedBy:    userID,
				PaymentMethod: req.PaymentMethod,
				Notes:         req.Notes,
				SettledAt:     settledAt,
			})
		}
		if err := tx.RecordSettlements(ctx, records); err != nil {
			return err
		}

		outstanding, err := tx.ListOutstandingDebts(ctx, groupID)
		if err != nil {
			return err
		}
		remaining, err := calculator.GenerateSettlements(groupID, mode, outstanding)
		if err != nil {
			return err
		}

		result.Executed = executed
		result.Remaining = acc.visible(userID, remaining)
		return nil
	})
	if err != nil {
		if !apperr.IsKind(err, apperr.KindInternal) {
			return nil, err
		}
		return nil, apperr.Internal("execute settlements", err)
	}

	result.TotalSettledAmount = calculator.TotalAmount(result.Executed)
	result.ExecutedCount = len(result.Executed)
	result.RemainingCount = len(result.Remaining)
	s.opts.Metrics.ObserveSettlements(string(mode), result.ExecutedCount, result.SkippedCount, result.TotalSettledAmount)

	slog.Info("Settlements executed",
		"group_id", groupID,
		"mode", mode,
		"executed", result.ExecutedCount,
		"skipped", result.SkippedCount,
		"remaining", result.RemainingCount,
		"amount", money.Format(result.TotalSettledAmount),
	)
	return result, nil
}

func (s *SettlementService) summary(ctx context.Context, userID string, scope models.DebtScope) (*models.SettlementSummary, error) {
	agg, err := s.aggregates(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return &models.SettlementSummary{
		Scope:           scope,
		TotalDebts:      agg.TotalCount,
		SettledDebts:    agg.SettledCount,
		UnsettledDebts:  agg.TotalCount - agg.SettledCount,
		TotalAmount:     agg.SettledAmount.Add(agg.UnsettledAmount),
		SettledAmount:   agg.SettledAmount,
		UnsettledAmount: agg.UnsettledAmount,
		LastSettledAt:   agg.LastSettledAt,
	}, nil
}

func (s *SettlementService) analytics(ctx context.Context, userID string, scope models.DebtScope) (*models.SettlementAnalytics, error) {
	agg, err := s.aggregates(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return &models.SettlementAnalytics{
		Scope:                scope,
		TotalSettlements:     agg.TotalCount,
		SettledCount:         agg.SettledCount,
		UnsettledCount:       agg.TotalCount - agg.SettledCount,
		TotalSettledAmount:   agg.SettledAmount,
		TotalUnsettledAmount: agg.UnsettledAmount,
		AvgSettlementHours:   agg.AvgHoursToSettle,
	}, nil
}

func (s *SettlementService) aggregates(ctx context.Context, userID string, scope models.DebtScope) (*models.DebtAggregates, error) {
	if err := s.authorizeScope(ctx, userID, scope); err != nil {
		return nil, err
	}
	agg, err := s.store.AggregateDebts(ctx, scope)
	if err != nil {
		return nil, apperr.Internal("aggregate debts", err)
	}
	return agg, nil
}

// authorizeScope allows a group report to its active members and a user
// report to that user only.
func (s *SettlementService) authorizeScope(ctx context.Context, userID string, scope models.DebtScope) error {
	if (scope.GroupID == "") == (scope.UserID == "") {
		return apperr.Validation("groupId", "exactly one of groupId or userId is required")
	}
	if scope.GroupID != "" {
		_, err := authorize(ctx, s.dir, scope.GroupID, userID)
		return err
	}
	if scope.UserID != userID {
		return apperr.Forbidden("user %s may not read settlements of user %s", userID, scope.UserID)
	}
	return nil
}

// restricted reports whether the user only sees and settles their own transactions.
func (a *access) restricted() bool {
	return a.group.Type == models.GroupTypePersonal && !a.admin
}

// visible filters txs down to what userID may see in the group.
func (a *access) visible(userID string, txs []models.SettlementTransaction) []models.SettlementTransaction {
	if !a.restricted() {
		return txs
	}
	out := txs[:0:0]
	for _, t := range txs {
		if t.Involves(userID) {
			out = append(out, t)
		}
	}
	return out
}

// closureRef picks the transaction a debt is attributed to when a whole
// simplified set is settled: the same pair, else the same debtor, else the
// same creditor, else the first transaction.
func closureRef(d models.Debt, txs []models.SettlementTransaction) string {
	for _, t := range txs {
		if t.FromUserID == d.DebtorID && t.ToUserID == d.CreditorID {
			return t.ID
		}
	}
	for _, t := range txs {
		if t.FromUserID == d.DebtorID {
			return t.ID
		}
	}
	for _, t := range txs {
		if t.ToUserID == d.CreditorID {
			return t.ID
		}
	}
	return txs[0].ID
}

// checkSettledAt rejects a caller-supplied settlement time that precedes any
// of the debts it would settle. A zero time means "now" and always passes.
func checkSettledAt(settledAt time.Time, debts []models.Debt) error {
	if settledAt.IsZero() {
		return nil
	}
	for _, d := range debts {
		if settledAt.Before(d.CreatedAt) {
			return apperr.Validation("settledAt", "must not precede debt %s created at %s",
				d.ID, d.CreatedAt.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

func debtIDs(debts []models.Debt) []string {
	ids := make([]string, len(debts))
	for i, d := range debts {
		ids[i] = d.ID
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
