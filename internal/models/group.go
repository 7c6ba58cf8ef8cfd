package models

import "time"

// GroupType controls who may settle what inside a group.
type GroupType string

const (
	// GroupTypePersonal restricts members to their own settlements; admins may settle all.
	GroupTypePersonal GroupType = "PERSONAL"
	// GroupTypeGroup lets any member settle any transaction.
	GroupTypeGroup GroupType = "GROUP"
)

// MemberRole is a member's role inside a group.
type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// MemberStatus is the lifecycle state of a membership.
type MemberStatus string

const (
	MemberActive  MemberStatus = "ACTIVE"
	MemberInvited MemberStatus = "INVITED"
	MemberLeft    MemberStatus = "LEFT"
)

// Group is the shared context that scopes expenses, debts and settlements.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name (e.g., "Roommates").
	Name string

	// Type decides the settlement trust model.
	Type GroupType

	// SettlementMode is used when a request does not name a mode.
	SettlementMode SettlementMode

	CreatedAt time.Time
}

// Member is one user's membership in a group.
type Member struct {
	GroupID  string
	UserID   string
	Role     MemberRole
	Status   MemberStatus
	JoinedAt time.Time
}

// IsActive reports whether the membership grants access to the group.
func (m *Member) IsActive() bool {
	return m != nil && m.Status == MemberActive
}

// IsAdmin reports whether the member is an active admin.
func (m *Member) IsAdmin() bool {
	return m.IsActive() && m.Role == RoleAdmin
}
