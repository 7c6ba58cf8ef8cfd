package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// NetBalances folds outstanding debts into a signed balance per user.
// Positive means the user is owed money. Settled debts are ignored.
// The balances of any debt set always sum to zero.
func NetBalances(debts []models.Debt) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, d := range debts {
		if d.IsSettled() {
			continue
		}
		balances[d.DebtorID] = balances[d.DebtorID].Sub(d.Amount)
		balances[d.CreditorID] = balances[d.CreditorID].Add(d.Amount)
	}
	return balances
}

// MemberBalances reports net balance plus gross owed/owing per user, sorted by user id.
func MemberBalances(debts []models.Debt) []models.MemberBalance {
	byUser := make(map[string]*models.MemberBalance)
	get := func(id string) *models.MemberBalance {
		b, ok := byUser[id]
		if !ok {
			b = &models.MemberBalance{UserID: id}
			byUser[id] = b
		}
		return b
	}

	for _, d := range debts {
		if d.IsSettled() {
			continue
		}
		debtor := get(d.DebtorID)
		debtor.TotalOwing = debtor.TotalOwing.Add(d.Amount)
		debtor.NetBalance = debtor.NetBalance.Sub(d.Amount)

		creditor := get(d.CreditorID)
		creditor.TotalOwed = creditor.TotalOwed.Add(d.Amount)
		creditor.NetBalance = creditor.NetBalance.Add(d.Amount)
	}

	result := make([]models.MemberBalance, 0, len(byUser))
	for _, b := range byUser {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result
}
