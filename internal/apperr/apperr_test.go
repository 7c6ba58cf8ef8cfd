package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("amount", "must be positive"), KindValidation},
		{"not found", NotFound("group", "g1"), KindNotFound},
		{"forbidden", Forbidden("not a member"), KindAuthorization},
		{"wrapped", fmt.Errorf("create: %w", Validation("splits", "empty")), KindValidation},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("amount", "must be positive, got %s", "-1.00")
	assert.Equal(t, "amount: must be positive, got -1.00", err.Error())
	assert.Equal(t, "amount", FieldOf(err))

	wrapped := Internal("load debts", errors.New("disk full"))
	assert.Equal(t, "load debts: disk full", wrapped.Error())
	assert.Equal(t, "", FieldOf(errors.New("x")))
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("execute: %w", ErrSettlementTransactionNotFound)
	assert.ErrorIs(t, err, ErrSettlementTransactionNotFound)
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, errors.Is(NotFound("group", "g1"), ErrSettlementTransactionNotFound))
	assert.False(t, IsKind(nil, KindNotFound))
}
