package domain

// TierDefinition is a static reward milestone. VisitsRequired counts the
// visits needed within this tier, not the cumulative total.
type TierDefinition struct {
	ID             int    `json:"id" yaml:"id" validate:"gt=0"`
	Name           string `json:"name" yaml:"name" validate:"required"`
	VisitsRequired int    `json:"visitsRequired" yaml:"visits_required" validate:"gt=0"`
	Reward         string `json:"reward" yaml:"reward" validate:"required"`
	Terminal       bool   `json:"terminal" yaml:"terminal"`
}

// TierStatus is derived from an account's visit count and never stored.
type TierStatus struct {
	TierID         int  `json:"tierId"`
	Progress       int  `json:"progress"`
	VisitsRequired int  `json:"visitsRequired"`
	Completed      bool `json:"completed"`
	Unlocked       bool `json:"unlocked"`
	Redeemed       bool `json:"redeemed"`
}
