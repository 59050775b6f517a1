package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

func testTiers() []domain.TierDefinition {
	return []domain.TierDefinition{
		{ID: 1, Name: "Nivel Inicial", VisitsRequired: 3, Reward: "Café Gratis"},
		{ID: 2, Name: "Nivel Intermedio", VisitsRequired: 5, Reward: "Desayuno ($6)"},
		{ID: 3, Name: "Nivel Avanzado", VisitsRequired: 8, Reward: "Desayuno Premium"},
		{ID: 4, Name: "Socio VIP", VisitsRequired: 10, Reward: "10% Descuento Vitalicio", Terminal: true},
	}
}

func TestCompute_NoVisits(t *testing.T) {
	st := Compute(0, testTiers())
	require.Len(t, st, 4)

	assert.True(t, st[0].Unlocked)
	assert.False(t, st[0].Completed)
	assert.Equal(t, 0, st[0].Progress)
	assert.Equal(t, 3, st[0].VisitsRequired)
	for _, s := range st[1:] {
		assert.False(t, s.Unlocked, "tier %d", s.TierID)
	}
	assert.Equal(t, 0, ActiveIndex(st))
}

func TestCompute_FirstTierDone(t *testing.T) {
	st := Compute(3, testTiers())

	assert.True(t, st[0].Completed)
	assert.Equal(t, 3, st[0].Progress)
	assert.True(t, st[1].Unlocked)
	assert.Equal(t, 0, st[1].Progress)
	assert.Equal(t, 5, st[1].VisitsRequired)
	assert.False(t, st[2].Unlocked)
	assert.Equal(t, 1, ActiveIndex(st))
}

func TestCompute_MidTier(t *testing.T) {
	st := Compute(7, testTiers())

	assert.Equal(t, 4, st[1].Progress)
	assert.False(t, st[1].Completed)
	assert.False(t, st[2].Unlocked)
	assert.Equal(t, 0, st[2].Progress)
}

func TestCompute_AllDoneKeepsTerminalActive(t *testing.T) {
	for _, visits := range []int{26, 27, 500} {
		st := Compute(visits, testTiers())
		for _, s := range st {
			assert.True(t, s.Completed)
			assert.True(t, s.Unlocked)
			assert.Equal(t, s.VisitsRequired, s.Progress)
		}
		assert.Equal(t, 3, ActiveIndex(st))
	}
}

func TestCompute_NegativeClamped(t *testing.T) {
	assert.Equal(t, Compute(0, testTiers()), Compute(-4, testTiers()))
}

func TestCompute_EmptyCatalog(t *testing.T) {
	assert.Empty(t, Compute(10, nil))
	assert.Equal(t, -1, ActiveIndex(nil))
}

func TestThreshold(t *testing.T) {
	tiers := testTiers()
	assert.Equal(t, 0, Threshold(tiers, 0))
	assert.Equal(t, 3, Threshold(tiers, 1))
	assert.Equal(t, 8, Threshold(tiers, 2))
	assert.Equal(t, 16, Threshold(tiers, 3))
	assert.Equal(t, 26, Threshold(tiers, 10))
}

func TestMilestoneAt(t *testing.T) {
	tiers := testTiers()
	cases := map[int]int{3: 1, 8: 2, 16: 3, 26: 4}
	for visits, want := range cases {
		tier, ok := MilestoneAt(visits, tiers)
		require.True(t, ok, "visits=%d", visits)
		assert.Equal(t, want, tier.ID)
	}
	for _, visits := range []int{0, 1, 4, 25, 27} {
		_, ok := MilestoneAt(visits, tiers)
		assert.False(t, ok, "visits=%d", visits)
	}
}

func TestSummarize(t *testing.T) {
	acc := &domain.Account{ID: "123", VisitCount: 9, RedeemedTierIDs: []int{1}}
	sum := Summarize(acc, testTiers())

	assert.Equal(t, 3, sum.ActiveTierID)
	assert.InDelta(t, 12.5, sum.ActivePct, 0.001)
	assert.Equal(t, []int{2}, sum.Redeemable)
	assert.True(t, sum.Tiers[0].Redeemed)
	assert.False(t, sum.AllCompleted)

	acc.VisitCount = 26
	sum = Summarize(acc, testTiers())
	assert.True(t, sum.AllCompleted)
	assert.Equal(t, 4, sum.ActiveTierID)
	assert.InDelta(t, 100, sum.ActivePct, 0.001)
}
