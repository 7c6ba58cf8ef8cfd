package models

import "time"

// User is a registered account. Accounts are managed by the identity
// collaborator; the ledger only checks existence and shows names.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique).
	Email string

	// DisplayName is shown in balances and history.
	DisplayName string

	CreatedAt time.Time
}
