package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitPolicy decides how an expense amount is divided among participants.
// It is fixed when the expense is created.
type SplitPolicy string

const (
	SplitEqual      SplitPolicy = "EQUAL"
	SplitPercentage SplitPolicy = "PERCENTAGE"
	SplitAmount     SplitPolicy = "AMOUNT"
)

// Valid reports whether p is a known policy.
func (p SplitPolicy) Valid() bool {
	switch p {
	case SplitEqual, SplitPercentage, SplitAmount:
		return true
	}
	return false
}

// Expense is a cost paid by one member on behalf of others in a group.
type Expense struct {
	ID          string
	GroupID     string
	Title       string
	Description string

	// PayerID is the member who paid and becomes creditor of every debt.
	PayerID string

	// CreatedBy is the acting user who recorded the expense.
	CreatedBy string

	// Amount is always positive with two fractional digits.
	Amount   decimal.Decimal
	Currency string
	Policy   SplitPolicy

	Splits []Split

	ExpenseDate time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// DeletedAt is set by a soft delete; nil while the expense is live.
	DeletedAt *time.Time
}

// IsDeleted reports whether the expense was soft deleted.
func (e *Expense) IsDeleted() bool {
	return e.DeletedAt != nil
}

// Split is one user's share of an expense, keyed by (ExpenseID, UserID).
type Split struct {
	ExpenseID string
	UserID    string

	// Percentage is 0-100 with two fractional digits. For AMOUNT splits it is
	// back-computed for display only.
	Percentage decimal.Decimal

	// Amount is the user's share with two fractional digits.
	Amount decimal.Decimal
}
