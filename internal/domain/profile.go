package domain

import "time"

// Profile represents the billing-relevant slice of a user account. Credits
// is a non-negative balance mutated only through the ledger, never directly.
type Profile struct {
	ID        string
	Email     string
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
