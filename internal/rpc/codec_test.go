package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/pkg/api"
)

func TestCodecStructs(t *testing.T) {
	codec := Codec()
	assert.Equal(t, "json", codec.Name())

	data, err := codec.Marshal(&api.GetExpenseRequest{ExpenseID: "e1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"expenseId":"e1"}`, string(data))

	var req api.GetExpenseRequest
	require.NoError(t, codec.Unmarshal(data, &req))
	assert.Equal(t, "e1", req.ExpenseID)
}

func TestCodecEmptyBody(t *testing.T) {
	var req api.ListExpensesRequest
	require.NoError(t, Codec().Unmarshal(nil, &req))
	assert.Empty(t, req.GroupID)

	var exec api.ExecuteSettlementsRequest
	require.NoError(t, Codec().Unmarshal([]byte("  "), &exec))
	assert.False(t, exec.SettleAll)
}

func TestCodecRejectsMalformed(t *testing.T) {
	var req api.GetExpenseRequest
	err := Codec().Unmarshal([]byte(`{"expenseId":`), &req)
	assert.Error(t, err)
}
