package calculator

import (
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// GenerateDebts emits one debt per split owed to the payer. The payer's own
// split and zero-amount splits produce nothing.
func GenerateDebts(expense models.Expense, createdAt time.Time) []models.Debt {
	debts := make([]models.Debt, 0, len(expense.Splits))
	for _, s := range expense.Splits {
		if s.UserID == expense.PayerID || !s.Amount.IsPositive() {
			continue
		}
		debts = append(debts, models.Debt{
			GroupID:      expense.GroupID,
			ExpenseID:    expense.ID,
			DebtorID:     s.UserID,
			CreditorID:   expense.PayerID,
			CreditorKind: models.CreditorUser,
			Amount:       s.Amount,
			CreatedAt:    createdAt,
		})
	}
	return debts
}
