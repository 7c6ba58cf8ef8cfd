package calculator

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// GenerateSettlements proposes payments that would clear the outstanding debts
// of a group under the given mode. The result is deterministic for a given
// debt set: same order, same ids.
func GenerateSettlements(groupID string, mode models.SettlementMode, debts []models.Debt) ([]models.SettlementTransaction, error) {
	switch mode {
	case models.SettlementSimplified:
		return SimplifiedSettlements(groupID, NetBalances(debts)), nil
	case models.SettlementDetailed:
		return DetailedSettlements(groupID, debts), nil
	}
	return nil, apperr.Validation("mode", "unknown settlement mode %q", mode)
}

type party struct {
	userID  string
	balance decimal.Decimal // absolute value
}

// SimplifiedSettlements greedily matches the largest creditor with the largest
// debtor until every balance is zero. Ties are broken by user id.
func SimplifiedSettlements(groupID string, balances map[string]decimal.Decimal) []models.SettlementTransaction {
	var creditors, debtors []party
	for userID, b := range balances {
		switch b.Sign() {
		case 1:
			creditors = append(creditors, party{userID: userID, balance: b})
		case -1:
			debtors = append(debtors, party{userID: userID, balance: b.Neg()})
		}
	}
	byLargest := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if c := ps[i].balance.Cmp(ps[j].balance); c != 0 {
				return c > 0
			}
			return ps[i].userID < ps[j].userID
		}
	}
	sort.Slice(creditors, byLargest(creditors))
	sort.Slice(debtors, byLargest(debtors))

	txs := make([]models.SettlementTransaction, 0, max(len(creditors), len(debtors)))
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		c, d := &creditors[i], &debtors[j]
		amount := decimal.Min(c.balance, d.balance)

		txs = append(txs, models.SettlementTransaction{
			ID:         SettlementID(groupID, d.userID, c.userID, amount),
			GroupID:    groupID,
			FromUserID: d.userID,
			ToUserID:   c.userID,
			Amount:     amount,
			Mode:       models.SettlementSimplified,
			Status:     models.SettlementPending,
		})

		c.balance = c.balance.Sub(amount)
		d.balance = d.balance.Sub(amount)
		if c.balance.IsZero() {
			i++
		}
		if d.balance.IsZero() {
			j++
		}
	}
	return txs
}

type pairKey struct{ debtor, creditor string }

// DetailedSettlements sums outstanding debts per directed (debtor, creditor)
// pair without any cross-user cancellation. Output is sorted by debtor, then creditor.
func DetailedSettlements(groupID string, debts []models.Debt) []models.SettlementTransaction {
	sums := make(map[pairKey]decimal.Decimal)
	for _, d := range debts {
		if d.IsSettled() {
			continue
		}
		k := pairKey{debtor: d.DebtorID, creditor: d.CreditorID}
		sums[k] = sums[k].Add(d.Amount)
	}

	keys := make([]pairKey, 0, len(sums))
	for k, amount := range sums {
		if amount.IsPositive() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].debtor != keys[j].debtor {
			return keys[i].debtor < keys[j].debtor
		}
		return keys[i].creditor < keys[j].creditor
	})

	txs := make([]models.SettlementTransaction, 0, len(keys))
	for _, k := range keys {
		amount := sums[k]
		txs = append(txs, models.SettlementTransaction{
			ID:         detailedSettlementID(groupID, k.debtor, k.creditor, amount),
			GroupID:    groupID,
			FromUserID: k.debtor,
			ToUserID:   k.creditor,
			Amount:     amount,
			Mode:       models.SettlementDetailed,
			Status:     models.SettlementPending,
		})
	}
	return txs
}

// SettlementID derives a stable id from "group:debtor:creditor:amount".
// The MD5 digest of that key is itself hashed into a version 3 name UUID.
func SettlementID(groupID, debtorID, creditorID string, amount decimal.Decimal) string {
	return nameUUID(fmt.Sprintf("%s:%s:%s:%s", groupID, debtorID, creditorID, money.Format(amount)))
}

func detailedSettlementID(groupID, debtorID, creditorID string, amount decimal.Decimal) string {
	return nameUUID(fmt.Sprintf("%s:%s:%s:%s:%s", groupID, debtorID, creditorID, money.Format(amount), models.SettlementDetailed))
}

// NettedOutID is the settlement ref stamped on debts whose balances already
// cancel out, so no payment exists for them. It depends only on the group and
// the set of debt ids.
func NettedOutID(groupID string, debts []models.Debt) string {
	ids := make([]string, len(debts))
	for i, d := range debts {
		ids[i] = d.ID
	}
	sort.Strings(ids)
	return nameUUID(groupID + ":NETTED:" + strings.Join(ids, ","))
}

func nameUUID(key string) string {
	digest := md5.Sum([]byte(key))
	sum := md5.Sum(digest[:])

	var id uuid.UUID
	copy(id[:], sum[:])
	id[6] = (id[6] & 0x0f) | 0x30 // version 3
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id.String()
}

// TotalAmount sums the amounts of txs.
func TotalAmount(txs []models.SettlementTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
