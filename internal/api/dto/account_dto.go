package dto

import (
	"time"

	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/progress"
)

// RegisterAccountRequest payload for new customers.
type RegisterAccountRequest struct {
	ID    string `json:"id" validate:"required,max=32"`
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// LoginRequest asserts an identity by national ID.
type LoginRequest struct {
	ID string `json:"id" validate:"required,max=32"`
}

// SessionResponse carries the bearer session marker.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountResponse mirrors the stored account.
type AccountResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	Visits         int       `json:"visits"`
	RedeemedLevels []int     `json:"redeemed_levels"`
	CreatedAt      time.Time `json:"created_at"`
}

// TierResponse is one catalog entry.
type TierResponse struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	VisitsRequired int    `json:"visits_required"`
	Reward         string `json:"reward"`
	Terminal       bool   `json:"terminal"`
}

// TierStatusResponse is a catalog entry plus the account's standing in it.
type TierStatusResponse struct {
	TierResponse
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
	Unlocked  bool `json:"unlocked"`
	Redeemed  bool `json:"redeemed"`
}

// ProgressResponse summarizes an account's position across all tiers.
type ProgressResponse struct {
	ActiveTierID  int                  `json:"active_tier_id"`
	ActivePercent float64              `json:"active_percent"`
	AllCompleted  bool                 `json:"all_completed"`
	Redeemable    []int                `json:"redeemable"`
	Tiers         []TierStatusResponse `json:"tiers"`
}

// AccountStateResponse is returned by every /me endpoint.
type AccountStateResponse struct {
	Account  AccountResponse  `json:"account"`
	Progress ProgressResponse `json:"progress"`
}

// NewAccountResponse maps a domain account.
func NewAccountResponse(account *domain.Account) AccountResponse {
	redeemed := account.RedeemedTierIDs
	if redeemed == nil {
		redeemed = []int{}
	}
	return AccountResponse{
		ID:             account.ID,
		Name:           account.DisplayName,
		Phone:          account.Contact,
		Visits:         account.VisitCount,
		RedeemedLevels: redeemed,
		CreatedAt:      account.CreatedAt,
	}
}

// NewTierResponse maps a tier definition.
func NewTierResponse(tier domain.TierDefinition) TierResponse {
	return TierResponse{
		ID:             tier.ID,
		Name:           tier.Name,
		VisitsRequired: tier.VisitsRequired,
		Reward:         tier.Reward,
		Terminal:       tier.Terminal,
	}
}

// NewProgressResponse joins a summary with the definitions it was computed from.
func NewProgressResponse(summary progress.Summary, tiers []domain.TierDefinition) ProgressResponse {
	resp := ProgressResponse{
		ActiveTierID:  summary.ActiveTierID,
		ActivePercent: summary.ActivePct,
		AllCompleted:  summary.AllCompleted,
		Redeemable:    summary.Redeemable,
		Tiers:         make([]TierStatusResponse, 0, len(summary.Tiers)),
	}
	for i, status := range summary.Tiers {
		resp.Tiers = append(resp.Tiers, TierStatusResponse{
			TierResponse: NewTierResponse(tiers[i]),
			Progress:     status.Progress,
			Completed:    status.Completed,
			Unlocked:     status.Unlocked,
			Redeemed:     status.Redeemed,
		})
	}
	return resp
}
