package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtScope selects which debts a report covers. Exactly one field is set.
type DebtScope struct {
	GroupID string
	UserID  string // debts where the user is debtor or creditor
}

// DebtRecord is one row of settlement history.
type DebtRecord struct {
	Debt
	ExpenseTitle    string
	ExpenseCurrency string
}

// HistoryFilter narrows settlement history.
type HistoryFilter struct {
	Scope       DebtScope
	SettledOnly bool
	Limit       int
	Offset      int
}

// DebtAggregates are the raw counters the reports are built from.
type DebtAggregates struct {
	TotalCount       int
	SettledCount     int
	SettledAmount    decimal.Decimal
	UnsettledAmount  decimal.Decimal
	AvgHoursToSettle float64
	LastSettledAt    *time.Time
}

// SettlementSummary is the settled vs outstanding overview of a scope.
type SettlementSummary struct {
	Scope           DebtScope
	TotalDebts      int
	SettledDebts    int
	UnsettledDebts  int
	TotalAmount     decimal.Decimal
	SettledAmount   decimal.Decimal
	UnsettledAmount decimal.Decimal
	LastSettledAt   *time.Time
}

// SettlementAnalytics adds settlement speed to the counters.
type SettlementAnalytics struct {
	Scope                DebtScope
	TotalSettlements     int
	SettledCount         int
	UnsettledCount       int
	TotalSettledAmount   decimal.Decimal
	TotalUnsettledAmount decimal.Decimal
	AvgSettlementHours   float64
}
