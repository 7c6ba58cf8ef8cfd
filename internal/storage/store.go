// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Reader is the read side of the store. It is available both outside and
// inside a unit of work.
type Reader interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetMember returns the membership of userID in groupID regardless of its status.
	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)

	// GetExpense returns the expense with its splits, including soft-deleted expenses.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns the live expenses of a group, newest first.
	ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// ListDebtsByExpense returns the live debts created from an expense.
	ListDebtsByExpense(ctx context.Context, expenseID string) ([]models.Debt, error)

	// ListOutstandingDebts returns every live, unsettled debt of a group.
	ListOutstandingDebts(ctx context.Context, groupID string) ([]models.Debt, error)

	// SettlementExecuted reports whether a settlement transaction id was ever executed in the group.
	SettlementExecuted(ctx context.Context, groupID, settlementID string) (bool, error)

	ListDebtHistory(ctx context.Context, filter models.HistoryFilter) ([]models.DebtRecord, error)
	AggregateDebts(ctx context.Context, scope models.DebtScope) (*models.DebtAggregates, error)
}

// Tx is a unit of work. Every write made through it commits or rolls back together.
type Tx interface {
	Reader

	// CreateExpense inserts the expense and its splits. Empty ids are generated.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// UpdateExpense rewrites the expense row and replaces its splits wholesale.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// SoftDeleteExpense stamps deleted_at on the expense and its debts.
	SoftDeleteExpense(ctx context.Context, expenseID string, at time.Time) error

	// CreateDebts inserts debts. Empty ids are generated.
	CreateDebts(ctx context.Context, debts []models.Debt) error

	// DeleteOutstandingDebtsByExpense removes the unsettled debts of an expense
	// so they can be regenerated.
	DeleteOutstandingDebtsByExpense(ctx context.Context, expenseID string) (int64, error)

	// LockOutstandingDebts reads a group's unsettled debts and holds them until
	// the unit of work ends.
	LockOutstandingDebts(ctx context.Context, groupID string) ([]models.Debt, error)

	// LockOutstandingDebtsBetween is LockOutstandingDebts narrowed to one
	// directed debtor -> creditor pair.
	LockOutstandingDebtsBetween(ctx context.Context, groupID, debtorID, creditorID string) ([]models.Debt, error)

	// MarkDebtsSettled stamps the given debts unless they are already settled
	// and returns how many rows changed.
	MarkDebtsSettled(ctx context.Context, debtIDs []string, stamp models.SettlementStamp) (int64, error)

	// RecordSettlements appends executed settlement transactions to the audit log.
	RecordSettlements(ctx context.Context, records []models.SettlementRecord) error
}

// Store is the ledger's persistent storage. This abstraction allows swapping
// backends (SQLite, PostgreSQL) without changing the service layer.
type Store interface {
	Reader

	// WithTx runs fn in a unit of work. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Directory writes used by group administration and fixtures.
	CreateUser(ctx context.Context, user *models.User) error
	CreateGroup(ctx context.Context, group *models.Group) error
	AddMember(ctx context.Context, member *models.Member) error
	SetMemberStatus(ctx context.Context, groupID, userID string, status models.MemberStatus) error

	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
