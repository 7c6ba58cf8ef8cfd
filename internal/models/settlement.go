package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementMode selects the netting policy used to propose payments.
type SettlementMode string

const (
	// SettlementSimplified nets balances across the group and greedily
	// matches creditors with debtors to keep the number of payments low.
	SettlementSimplified SettlementMode = "SIMPLIFIED"
	// SettlementDetailed keeps every directed debtor -> creditor pair.
	SettlementDetailed SettlementMode = "DETAILED"
)

// Valid reports whether m is a known mode.
func (m SettlementMode) Valid() bool {
	return m == SettlementSimplified || m == SettlementDetailed
}

// SettlementStatus is the lifecycle state of a settlement transaction.
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "PENDING"
	SettlementSettled SettlementStatus = "SETTLED"
)

// SettlementTransaction is a proposed (or executed) payment between two users.
// It is derived from outstanding debts and never stored as its own row.
type SettlementTransaction struct {
	ID         string
	GroupID    string
	FromUserID string // debtor
	ToUserID   string // creditor
	Amount     decimal.Decimal
	Mode       SettlementMode
	Status     SettlementStatus

	// ExecutedAt is set once the transaction has been applied.
	ExecutedAt *time.Time
}

// Involves reports whether userID is the debtor or the creditor.
func (t SettlementTransaction) Involves(userID string) bool {
	return t.FromUserID == userID || t.ToUserID == userID
}

// SettlementRequest selects what to settle. Exactly one of TransactionIDs or
// SettleAll must be given.
type SettlementRequest struct {
	TransactionIDs []string
	SettleAll      bool

	// Mode defaults to the group's settlement mode when empty.
	Mode SettlementMode

	// SettledAt defaults to the execution time when zero.
	SettledAt     time.Time
	PaymentMethod string
	Notes         string
}

// SettlementResult reports what an execution changed.
type SettlementResult struct {
	GroupID            string
	Mode               SettlementMode
	Executed           []SettlementTransaction
	Remaining          []SettlementTransaction
	TotalSettledAmount decimal.Decimal
	ExecutedCount      int
	RemainingCount     int

	// SkippedCount counts requested transactions that were already settled.
	SkippedCount int
	Timestamp    time.Time
}

// MemberBalance is one user's net position in a group.
// Positive means the user is owed money, negative means the user owes.
type MemberBalance struct {
	UserID     string
	NetBalance decimal.Decimal
	TotalOwed  decimal.Decimal // owed to this user
	TotalOwing decimal.Decimal // this user owes others
}

// SettlementRecord is the audit entry written when a settlement transaction
// is executed. SettlementID may repeat over time because transaction ids are
// derived from (group, debtor, creditor, amount).
type SettlementRecord struct {
	ID            string
	SettlementID  string
	GroupID       string
	FromUserID    string
	ToUserID      string
	Amount        decimal.Decimal
	Mode          SettlementMode
	ExecutedBy    string
	PaymentMethod string
	Notes         string
	SettledAt     time.Time
}
