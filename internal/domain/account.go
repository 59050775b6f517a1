package domain

import (
	"sort"
	"time"
)

// Account is the canonical loyalty record for a customer, keyed by national ID.
type Account struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"name"`
	Contact         string    `json:"phone,omitempty"`
	VisitCount      int       `json:"visits"`
	RedeemedTierIDs []int     `json:"redeemedLevels"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewAccount returns a fresh account with no visits and no redemptions.
func NewAccount(id, displayName, contact string, now time.Time) *Account {
	return &Account{
		ID:              id,
		DisplayName:     displayName,
		Contact:         contact,
		VisitCount:      0,
		RedeemedTierIDs: []int{},
		CreatedAt:       now.UTC(),
	}
}

// HasRedeemed reports whether tierID is already in the redeemed set.
func (a *Account) HasRedeemed(tierID int) bool {
	for _, id := range a.RedeemedTierIDs {
		if id == tierID {
			return true
		}
	}
	return false
}

// AddRedemption appends tierID with set semantics. It returns false when
// the tier was already redeemed.
func (a *Account) AddRedemption(tierID int) bool {
	if a.HasRedeemed(tierID) {
		return false
	}
	a.RedeemedTierIDs = append(a.RedeemedTierIDs, tierID)
	sort.Ints(a.RedeemedTierIDs)
	return true
}

// RemoveRedemption drops tierID from the redeemed set.
func (a *Account) RemoveRedemption(tierID int) {
	out := a.RedeemedTierIDs[:0]
	for _, id := range a.RedeemedTierIDs {
		if id != tierID {
			out = append(out, id)
		}
	}
	a.RedeemedTierIDs = out
}

// Clone returns a deep copy safe to hand out of a session cache.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.RedeemedTierIDs = append([]int{}, a.RedeemedTierIDs...)
	return &cp
}
