// Package progress derives per-tier state from a cumulative visit count.
//
// Visits are cumulative: tier i starts counting once every earlier tier's
// delta has been met, and nothing resets after a reward is redeemed.
package progress

import "github.com/guayoyo/loyalty-service/internal/domain"

// Threshold returns the cumulative visits needed before tier i starts.
func Threshold(tiers []domain.TierDefinition, i int) int {
	total := 0
	for j := 0; j < i && j < len(tiers); j++ {
		total += tiers[j].VisitsRequired
	}
	return total
}

// Compute returns one status per tier, in catalog order.
func Compute(visitCount int, tiers []domain.TierDefinition) []domain.TierStatus {
	if visitCount < 0 {
		visitCount = 0
	}

	statuses := make([]domain.TierStatus, len(tiers))
	before := 0
	for i, tier := range tiers {
		inTier := visitCount - before
		if inTier < 0 {
			inTier = 0
		}
		progress := inTier
		if progress > tier.VisitsRequired {
			progress = tier.VisitsRequired
		}
		statuses[i] = domain.TierStatus{
			TierID:         tier.ID,
			Progress:       progress,
			VisitsRequired: tier.VisitsRequired,
			Completed:      inTier >= tier.VisitsRequired,
			Unlocked:       i == 0 || visitCount >= before,
		}
		before += tier.VisitsRequired
	}
	return statuses
}

// ActiveIndex returns the lowest tier not yet completed. Once every tier is
// completed the last one stays active. It returns -1 for an empty catalog.
func ActiveIndex(statuses []domain.TierStatus) int {
	for i, st := range statuses {
		if !st.Completed {
			return i
		}
	}
	return len(statuses) - 1
}

// MilestoneAt reports the tier completed exactly at visitCount, if any.
func MilestoneAt(visitCount int, tiers []domain.TierDefinition) (domain.TierDefinition, bool) {
	accumulated := 0
	for _, tier := range tiers {
		accumulated += tier.VisitsRequired
		if visitCount == accumulated {
			return tier, true
		}
		if accumulated > visitCount {
			break
		}
	}
	return domain.TierDefinition{}, false
}

// Summary bundles what a dashboard needs for one account.
type Summary struct {
	Tiers        []domain.TierStatus `json:"tiers"`
	ActiveTierID int                 `json:"activeTierId"`
	ActivePct    float64             `json:"activePercent"`
	Redeemable   []int               `json:"redeemable"`
	AllCompleted bool                `json:"allCompleted"`
}

// Summarize computes statuses for the account and marks its redemptions.
func Summarize(account *domain.Account, tiers []domain.TierDefinition) Summary {
	statuses := Compute(account.VisitCount, tiers)
	sum := Summary{Tiers: statuses, Redeemable: []int{}}

	allDone := len(statuses) > 0
	for i := range statuses {
		statuses[i].Redeemed = account.HasRedeemed(statuses[i].TierID)
		if statuses[i].Completed && !statuses[i].Redeemed {
			sum.Redeemable = append(sum.Redeemable, statuses[i].TierID)
		}
		if !statuses[i].Completed {
			allDone = false
		}
	}
	sum.AllCompleted = allDone

	if idx := ActiveIndex(statuses); idx >= 0 {
		active := statuses[idx]
		sum.ActiveTierID = active.TierID
		if active.VisitsRequired > 0 {
			sum.ActivePct = float64(active.Progress) / float64(active.VisitsRequired) * 100
		}
	}
	return sum
}
