package api

type Member struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
	Status      string `json:"status"`
}

type Group struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	SettlementMode string    `json:"settlementMode"`
	Members        []*Member `json:"members"`
	CreatedAt      int64     `json:"createdAt"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

// MemberBalance is a member's net position. Positive means the member is owed money.
type MemberBalance struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	NetBalance  string `json:"netBalance"`
	TotalOwed   string `json:"totalOwed"`
	TotalOwing  string `json:"totalOwing"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GetGroupBalancesResponse struct {
	GroupID  string           `json:"groupId"`
	Balances []*MemberBalance `json:"balances"`
}
