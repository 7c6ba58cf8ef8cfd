package service

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/pkg/api"
)

func parseAmount(field, value string) (decimal.Decimal, error) {
	d, err := money.Parse(value)
	if err != nil {
		return decimal.Zero, apperr.Validation(field, "%s", err.Error())
	}
	return d, nil
}

func parsePolicy(value string) (models.SplitPolicy, error) {
	p := models.SplitPolicy(strings.ToUpper(value))
	if !p.Valid() {
		return "", apperr.Validation("splitPolicy", "unknown split policy %q", value)
	}
	return p, nil
}

// parseShares converts wire shares. Values are required for PERCENTAGE and
// AMOUNT splits and ignored for EQUAL splits.
func parseShares(policy models.SplitPolicy, in []api.SplitShare) ([]calculator.Share, error) {
	shares := make([]calculator.Share, len(in))
	for i, s := range in {
		shares[i] = calculator.Share{UserID: s.UserID}
		if policy == models.SplitEqual {
			continue
		}
		if s.Value == "" {
			return nil, apperr.Validation("splits", "share value for %q is required for %s splits", s.UserID, policy)
		}
		v, err := parseAmount("splits", s.Value)
		if err != nil {
			return nil, err
		}
		shares[i].Value = v
	}
	return shares, nil
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func toAPISplits(splits []models.Split) []api.Split {
	out := make([]api.Split, len(splits))
	for i, s := range splits {
		out[i] = api.Split{
			UserID:     s.UserID,
			Percentage: money.Format(s.Percentage),
			Amount:     money.Format(s.Amount),
		}
	}
	return out
}

func toAPIExpense(e *models.Expense) *api.Expense {
	return &api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Title:       e.Title,
		Description: e.Description,
		PayerID:     e.PayerID,
		CreatedBy:   e.CreatedBy,
		Amount:      money.Format(e.Amount),
		Currency:    e.Currency,
		SplitPolicy: string(e.Policy),
		Splits:      toAPISplits(e.Splits),
		ExpenseDate: e.ExpenseDate.Unix(),
		CreatedAt:   e.CreatedAt.Unix(),
		UpdatedAt:   e.UpdatedAt.Unix(),
	}
}

func toAPITransactions(txs []models.SettlementTransaction) []*api.SettlementTransaction {
	out := make([]*api.SettlementTransaction, len(txs))
	for i, t := range txs {
		out[i] = &api.SettlementTransaction{
			ID:         t.ID,
			GroupID:    t.GroupID,
			FromUserID: t.FromUserID,
			ToUserID:   t.ToUserID,
			Amount:     money.Format(t.Amount),
			Mode:       string(t.Mode),
			Status:     string(t.Status),
			ExecutedAt: unixOrZero(t.ExecutedAt),
		}
	}
	return out
}

func toScope(s api.SettlementScope) models.DebtScope {
	return models.DebtScope{GroupID: s.GroupID, UserID: s.UserID}
}

func toAPIHistory(records []models.DebtRecord) []*api.SettlementHistoryEntry {
	out := make([]*api.SettlementHistoryEntry, len(records))
	for i, r := range records {
		out[i] = &api.SettlementHistoryEntry{
			DebtID:        r.ID,
			GroupID:       r.GroupID,
			ExpenseID:     r.ExpenseID,
			ExpenseTitle:  r.ExpenseTitle,
			DebtorID:      r.DebtorID,
			CreditorID:    r.CreditorID,
			Amount:        money.Format(r.Amount),
			Currency:      r.ExpenseCurrency,
			Settled:       r.IsSettled(),
			SettledAt:     unixOrZero(r.SettledAt),
			PaymentMethod: r.PaymentMethod,
			Notes:         r.Notes,
			SettlementRef: r.SettlementRef,
			CreatedAt:     r.CreatedAt.Unix(),
		}
	}
	return out
}
