package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditorKind identifies what kind of party a debt is owed to.
type CreditorKind string

// CreditorUser is the only kind the ledger produces today.
const CreditorUser CreditorKind = "USER"

// Debt is a directed, persisted obligation of DebtorID to CreditorID.
// DebtorID never equals CreditorID.
type Debt struct {
	ID           string
	GroupID      string
	ExpenseID    string
	DebtorID     string
	CreditorID   string
	CreditorKind CreditorKind
	Amount       decimal.Decimal

	// PaymentMethod and Notes are recorded when the debt is settled.
	PaymentMethod string
	Notes         string

	// SettlementRef is the id of the settlement transaction that settled this debt.
	SettlementRef string

	CreatedAt time.Time

	// SettledAt is nil while the debt is outstanding.
	SettledAt *time.Time
}

// IsSettled reports whether the debt has been settled.
func (d *Debt) IsSettled() bool {
	return d.SettledAt != nil
}

// SettlementStamp is written onto every debt a settlement transaction discharges.
type SettlementStamp struct {
	Ref           string
	SettledAt     time.Time
	PaymentMethod string
	Notes         string
}
