package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// Share is one participant's input to a split. Value is a percentage for
// PERCENTAGE splits, an amount for AMOUNT splits and ignored for EQUAL splits.
type Share struct {
	UserID string
	Value  decimal.Decimal
}

// SplitInput describes an expense amount to divide.
type SplitInput struct {
	Total    decimal.Decimal
	Policy   models.SplitPolicy
	Shares   []Share
	Rounding money.Rounding
}

// CalculateSplits divides in.Total among the participants according to the
// policy. The returned splits are in participant order and carry no expense id.
//
// Every policy is followed by the reconciliation check |Σ(amount) - total| <= 0.01.
func CalculateSplits(in SplitInput) ([]models.Split, error) {
	if err := validateSplitInput(in); err != nil {
		return nil, err
	}

	var (
		splits []models.Split
		err    error
	)
	switch in.Policy {
	case models.SplitEqual:
		splits = equalSplits(in)
	case models.SplitPercentage:
		splits, err = percentageSplits(in)
	case models.SplitAmount:
		splits, err = amountSplits(in)
	}
	if err != nil {
		return nil, err
	}

	if err := reconcile(in.Total, splits); err != nil {
		return nil, err
	}
	return splits, nil
}

func validateSplitInput(in SplitInput) error {
	if !in.Policy.Valid() {
		return apperr.Validation("splitPolicy", "unknown split policy %q", in.Policy)
	}
	if !in.Total.IsPositive() {
		return apperr.Validation("amount", "must be positive, got %s", in.Total.String())
	}
	if _, err := money.ToCents(in.Total); err != nil {
		return apperr.Validation("amount", "%s", err.Error())
	}
	if len(in.Shares) == 0 {
		return apperr.Validation("splits", "at least one participant is required")
	}

	seen := make(map[string]bool, len(in.Shares))
	for _, s := range in.Shares {
		if s.UserID == "" {
			return apperr.Validation("splits", "participant user id is required")
		}
		if seen[s.UserID] {
			return apperr.Validation("splits", "duplicate participant %q", s.UserID)
		}
		seen[s.UserID] = true

		if in.Policy == models.SplitEqual {
			continue
		}
		if !s.Value.IsPositive() {
			return apperr.Validation("splits", "share for %q must be positive, got %s", s.UserID, s.Value.String())
		}
		if _, err := money.ToCents(s.Value); err != nil {
			return apperr.Validation("splits", "share for %q: %s", s.UserID, err.Error())
		}
	}
	return nil
}

// equalSplits gives every participant round(total / n). The rounding
// remainder is spread one unit at a time so the amounts sum to the total and
// differ by at most one unit. Percentages are spread the same way over 100.
func equalSplits(in SplitInput) []models.Split {
	n := len(in.Shares)
	amounts := distribute(in.Total, n, in.Rounding)
	percentages := distribute(money.Hundred, n, in.Rounding)

	splits := make([]models.Split, n)
	for i, s := range in.Shares {
		splits[i] = models.Split{
			UserID:     s.UserID,
			Amount:     amounts[i],
			Percentage: percentages[i],
		}
	}
	return splits
}

// distribute splits total into n parts at the rounding scale. A positive
// remainder goes to the first parts, a negative one is taken from the last.
func distribute(total decimal.Decimal, n int, r money.Rounding) []decimal.Decimal {
	base := r.Apply(total.Div(decimal.NewFromInt(int64(n))))
	parts := make([]decimal.Decimal, n)
	for i := range parts {
		parts[i] = base
	}

	unit := r.Unit()
	remainder := total.Sub(base.Mul(decimal.NewFromInt(int64(n))))
	steps := int(remainder.Div(unit).Round(0).IntPart())
	for i := 0; i < steps && i < n; i++ {
		parts[i] = parts[i].Add(unit)
	}
	for i := 0; i < -steps && i < n; i++ {
		parts[n-1-i] = parts[n-1-i].Sub(unit)
	}
	return parts
}

func percentageSplits(in SplitInput) ([]models.Split, error) {
	sum := decimal.Zero
	for _, s := range in.Shares {
		sum = sum.Add(s.Value)
	}
	if !sum.Equal(money.Hundred) {
		return nil, apperr.Validation("splits", "percentages must sum to 100, got %s", sum.StringFixed(money.Scale))
	}

	splits := make([]models.Split, len(in.Shares))
	for i, s := range in.Shares {
		splits[i] = models.Split{
			UserID:     s.UserID,
			Percentage: s.Value,
			Amount:     in.Rounding.Apply(in.Total.Mul(s.Value).Div(money.Hundred)),
		}
	}
	return splits, nil
}

func amountSplits(in SplitInput) ([]models.Split, error) {
	sum := decimal.Zero
	for _, s := range in.Shares {
		sum = sum.Add(s.Value)
	}
	if !sum.Equal(in.Total) {
		return nil, apperr.Validation("splits", "amounts must sum to %s, got %s",
			money.Format(in.Total), money.Format(sum))
	}

	splits := make([]models.Split, len(in.Shares))
	for i, s := range in.Shares {
		splits[i] = models.Split{
			UserID:     s.UserID,
			Amount:     s.Value,
			Percentage: in.Rounding.Apply(s.Value.Mul(money.Hundred).Div(in.Total)),
		}
	}
	return splits, nil
}

func reconcile(total decimal.Decimal, splits []models.Split) error {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	if sum.Sub(total).Abs().GreaterThan(money.Tolerance) {
		return apperr.Validation("splits", "split amounts sum to %s, expected %s",
			money.Format(sum), money.Format(total))
	}
	return nil
}

// SharesFromSplits rebuilds calculator input from stored splits, so an expense
// can be recalculated under a new total with its original participants.
func SharesFromSplits(policy models.SplitPolicy, splits []models.Split) []Share {
	shares := make([]Share, len(splits))
	for i, s := range splits {
		shares[i] = Share{UserID: s.UserID}
		switch policy {
		case models.SplitPercentage:
			shares[i].Value = s.Percentage
		case models.SplitAmount:
			shares[i].Value = s.Amount
		}
	}
	return shares
}
