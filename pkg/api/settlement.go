package api

type SettlementTransaction struct {
	ID         string `json:"id"`
	GroupID    string `json:"groupId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Amount     string `json:"amount"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	ExecutedAt int64  `json:"executedAt,omitempty"`
}

type GetAvailableSettlementsRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	// Mode defaults to the group's settlement mode.
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=SIMPLIFIED DETAILED"`
}

type GetAvailableSettlementsResponse struct {
	GroupID      string                   `json:"groupId"`
	Mode         string                   `json:"mode"`
	Transactions []*SettlementTransaction `json:"transactions"`
	TotalAmount  string                   `json:"totalAmount"`
}

// ExecuteSettlementsRequest settles either the listed transactions or, with
// SettleAll, every outstanding transaction of the group.
type ExecuteSettlementsRequest struct {
	GroupID        string   `json:"groupId" validate:"required"`
	TransactionIDs []string `json:"transactionIds,omitempty" validate:"required_without=SettleAll,excluded_with=SettleAll,dive,required"`
	SettleAll      bool     `json:"settleAll,omitempty"`
	Mode           string   `json:"mode,omitempty" validate:"omitempty,oneof=SIMPLIFIED DETAILED"`
	SettledAt      int64    `json:"settledAt,omitempty" validate:"gte=0"`
	PaymentMethod  string   `json:"paymentMethod,omitempty" validate:"max=50"`
	Notes          string   `json:"notes,omitempty" validate:"max=500"`
}

type ExecuteSettlementsResponse struct {
	GroupID            string                   `json:"groupId"`
	Mode               string                   `json:"mode"`
	Executed           []*SettlementTransaction `json:"executed"`
	Remaining          []*SettlementTransaction `json:"remaining"`
	TotalSettledAmount string                   `json:"totalSettledAmount"`
	ExecutedCount      int                      `json:"executedCount"`
	RemainingCount     int                      `json:"remainingCount"`
	SkippedCount       int                      `json:"skippedCount"`
	Timestamp          int64                    `json:"timestamp"`
}

// SettlementScope selects a group, or a user as debtor or creditor. Exactly one is set.
type SettlementScope struct {
	GroupID string `json:"groupId,omitempty" validate:"required_without=UserID,excluded_with=UserID"`
	UserID  string `json:"userId,omitempty" validate:"required_without=GroupID"`
}

type GetSettlementSummaryRequest struct {
	SettlementScope
}

type GetSettlementSummaryResponse struct {
	GroupID         string `json:"groupId,omitempty"`
	UserID          string `json:"userId,omitempty"`
	TotalDebts      int    `json:"totalDebts"`
	SettledDebts    int    `json:"settledDebts"`
	UnsettledDebts  int    `json:"unsettledDebts"`
	TotalAmount     string `json:"totalAmount"`
	SettledAmount   string `json:"settledAmount"`
	UnsettledAmount string `json:"unsettledAmount"`
	LastSettledAt   int64  `json:"lastSettledAt,omitempty"`
}

type GetSettlementAnalyticsRequest struct {
	SettlementScope
}

type GetSettlementAnalyticsResponse struct {
	GroupID              string  `json:"groupId,omitempty"`
	UserID               string  `json:"userId,omitempty"`
	TotalSettlements     int     `json:"totalSettlements"`
	SettledCount         int     `json:"settledCount"`
	UnsettledCount       int     `json:"unsettledCount"`
	TotalSettledAmount   string  `json:"totalSettledAmount"`
	TotalUnsettledAmount string  `json:"totalUnsettledAmount"`
	AvgSettlementHours   float64 `json:"avgSettlementHours"`
}

type GetSettlementHistoryRequest struct {
	SettlementScope
	SettledOnly bool `json:"settledOnly,omitempty"`
	Limit       int  `json:"limit,omitempty" validate:"gte=0,lte=500"`
	Offset      int  `json:"offset,omitempty" validate:"gte=0"`
}

// SettlementHistoryEntry is one debt with its settlement state.
type SettlementHistoryEntry struct {
	DebtID        string `json:"debtId"`
	GroupID       string `json:"groupId"`
	ExpenseID     string `json:"expenseId"`
	ExpenseTitle  string `json:"expenseTitle"`
	DebtorID      string `json:"debtorId"`
	CreditorID    string `json:"creditorId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Settled       bool   `json:"settled"`
	SettledAt     int64  `json:"settledAt,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Notes         string `json:"notes,omitempty"`
	SettlementRef string `json:"settlementRef,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

type GetSettlementHistoryResponse struct {
	Entries []*SettlementHistoryEntry `json:"entries"`
}
