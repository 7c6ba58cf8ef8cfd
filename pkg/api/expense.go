package api

// SplitShare is one participant's input to a split. Value is a percentage for
// PERCENTAGE splits, an amount for AMOUNT splits and ignored for EQUAL splits.
type SplitShare struct {
	UserID string `json:"userId" validate:"required"`
	Value  string `json:"value,omitempty" validate:"omitempty,numeric"`
}

// Split is one participant's computed share of an expense.
type Split struct {
	UserID     string `json:"userId"`
	Percentage string `json:"percentage"`
	Amount     string `json:"amount"`
}

type Expense struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"groupId"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	PayerID     string  `json:"payerId"`
	CreatedBy   string  `json:"createdBy"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	SplitPolicy string  `json:"splitPolicy"`
	Splits      []Split `json:"splits"`
	ExpenseDate int64   `json:"expenseDate"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

type PreviewSplitRequest struct {
	Amount      string       `json:"amount" validate:"required,numeric"`
	SplitPolicy string       `json:"splitPolicy" validate:"required,oneof=EQUAL PERCENTAGE AMOUNT"`
	Splits      []SplitShare `json:"splits" validate:"required,min=1,dive"`
}

type PreviewSplitResponse struct {
	Amount string  `json:"amount"`
	Splits []Split `json:"splits"`
}

type CreateExpenseRequest struct {
	GroupID     string `json:"groupId" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	// PayerID defaults to the acting user.
	PayerID     string       `json:"payerId,omitempty"`
	Amount      string       `json:"amount" validate:"required,numeric"`
	Currency    string       `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	SplitPolicy string       `json:"splitPolicy" validate:"required,oneof=EQUAL PERCENTAGE AMOUNT"`
	Splits      []SplitShare `json:"splits" validate:"required,min=1,dive"`
	ExpenseDate int64        `json:"expenseDate,omitempty" validate:"gte=0"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expenseId" validate:"required"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// UpdateExpenseRequest changes an expense. Empty fields are left unchanged.
// When Amount, PayerID or Splits change, splits and debts are recalculated.
type UpdateExpenseRequest struct {
	ExpenseID   string       `json:"expenseId" validate:"required"`
	Title       string       `json:"title,omitempty" validate:"max=200"`
	Description string       `json:"description,omitempty" validate:"max=2000"`
	PayerID     string       `json:"payerId,omitempty"`
	Amount      string       `json:"amount,omitempty" validate:"omitempty,numeric"`
	Currency    string       `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Splits      []SplitShare `json:"splits,omitempty" validate:"omitempty,dive"`
	ExpenseDate int64        `json:"expenseDate,omitempty" validate:"gte=0"`
}

type UpdateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId" validate:"required"`
}

type DeleteExpenseResponse struct {
	ExpenseID string `json:"expenseId"`
	DeletedAt int64  `json:"deletedAt"`
}
