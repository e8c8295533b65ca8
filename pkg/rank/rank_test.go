package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/quality"
	"github.com/elonfeng/replyradar/pkg/signals"
)

const delta = 1e-9

func known(likes int64, age int) candidate.Candidate {
	return candidate.Candidate{
		Likes:      candidate.Known(likes),
		AgeMinutes: age,
		AgeKnown:   true,
		Velocity:   float64(likes) / float64(max(age, 10)),
	}
}

func TestFinalScoreWeights(t *testing.T) {
	assert.InDelta(t, 1.0, FinalScore(signals.Scores{Relevance: 1, Replyability: 1, ContextSimilarity: 1}), delta)
	assert.InDelta(t, 0.45, FinalScore(signals.Scores{Relevance: 1}), delta)
	assert.InDelta(t, 0.25, FinalScore(signals.Scores{Replyability: 1}), delta)
	assert.InDelta(t, 0.30, FinalScore(signals.Scores{ContextSimilarity: 1}), delta)
	assert.InDelta(t, 0.45*0.9+0.25*0.65+0.3*0.4, FinalScore(signals.Scores{Relevance: 0.9, Replyability: 0.65, ContextSimilarity: 0.4}), delta)
}

func TestAssignValueTier(t *testing.T) {
	tests := []struct {
		name string
		c    candidate.Candidate
		want ValueTier
	}{
		{"S by likes", known(500, 90), TierS},
		{"S by velocity", known(80, 10), TierS},
		{"S too old becomes A", known(500, 91), TierA},
		{"A by likes", known(200, 180), TierA},
		{"A by velocity", known(300, 100), TierA},
		{"A too old", known(499, 181), TierB},
		{"B", known(100, 60), TierB},
		{"unknown likes", candidate.Candidate{Likes: candidate.Unknown(), AgeMinutes: 5, AgeKnown: true}, TierB},
		{"unknown age", candidate.Candidate{Likes: candidate.Known(10_000)}, TierB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignValueTier(tt.c))
		})
	}
}

func TestValueTierMonotonicInVelocity(t *testing.T) {
	order := map[ValueTier]int{TierB: 0, TierA: 1, TierS: 2}

	prev := TierB
	for lpm := 2; lpm <= 9; lpm++ {
		tier := AssignValueTier(known(int64(lpm*60), 60))
		assert.GreaterOrEqual(t, order[tier], order[prev], "likes per minute %d", lpm)
		prev = tier
	}
	assert.Equal(t, TierB, AssignValueTier(known(120, 60)))
	assert.Equal(t, TierS, AssignValueTier(known(540, 60)))
}

func TestClassifyHarvestTier(t *testing.T) {
	k := candidate.Known
	u := candidate.Unknown()
	tests := []struct {
		name  string
		likes candidate.Count
		views candidate.Count
		want  HarvestTier
	}{
		{"views 1m", k(10), k(1_000_000), HarvestAPlus},
		{"likes 100k", k(100_000), u, HarvestAPlus},
		{"likes 25k", k(25_000), k(999_999), HarvestB},
		{"likes 10k", k(10_000), u, HarvestC},
		{"below", k(9_999), u, HarvestD},
		{"unknown", u, u, HarvestD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHarvestTier(tt.likes, tt.views))
		})
	}
}

func TestFreshnessMultiplierBands(t *testing.T) {
	tests := map[int]float64{0: 2.0, 30: 2.0, 31: 1.5, 90: 1.5, 91: 1.0, 180: 1.0, 181: 0.7, 360: 0.7, 361: 0.5}
	for age, want := range tests {
		assert.InDelta(t, want, FreshnessMultiplier(age, true), delta, "age %d", age)
	}
	assert.InDelta(t, 1.0, FreshnessMultiplier(5000, false), delta)
}

func TestVelocityMultiplierClamps(t *testing.T) {
	assert.InDelta(t, 0.8, VelocityMultiplier(0, true), delta)
	assert.InDelta(t, 1.2, VelocityMultiplier(12, true), delta)
	assert.InDelta(t, 2.0, VelocityMultiplier(300, true), delta)
	assert.InDelta(t, 1.0, VelocityMultiplier(0, false), delta)
}

func TestLegacyScore(t *testing.T) {
	c := known(600, 20)
	// base 600 likes, fresh x2, velocity 30 -> x2, elite x1.5, S x2
	assert.InDelta(t, 600*2.0*2.0*1.5*2.0, LegacyScore(c, 1.5, TierS), delta)

	c.Views = candidate.Known(10_000)
	assert.InDelta(t, 10_000*2.0*2.0*1.2*1.0, LegacyScore(c, 1.2, TierB), delta)

	assert.Zero(t, LegacyScore(c, 0, TierS))
	assert.Zero(t, LegacyScore(candidate.Candidate{}, 1.5, TierB))
}

func TestRank(t *testing.T) {
	c := known(600, 20)
	q := quality.Result{Score: 91, Tier: quality.TierElite, Multiplier: 1.5}
	s := signals.Scores{Relevance: 0.9, Replyability: 0.65, ContextSimilarity: 0.4}

	r := Rank(c, q, s)
	assert.Equal(t, TierS, r.ValueTier)
	assert.Equal(t, HarvestD, r.HarvestTier)
	assert.InDelta(t, FinalScore(s), r.Final, delta)
	assert.InDelta(t, LegacyScore(c, 1.5, TierS), r.Legacy, delta)
}
