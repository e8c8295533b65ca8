// Package rank combines candidate signals into persisted scores and tiers.
package rank

import (
	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/quality"
	"github.com/elonfeng/replyradar/pkg/signals"
)

// ValueTier ranks an opportunity by freshness and engagement.
type ValueTier string

const (
	TierS ValueTier = "S"
	TierA ValueTier = "A"
	TierB ValueTier = "B"
)

// HarvestTier buckets a post by raw engagement magnitude alone.
type HarvestTier string

const (
	HarvestAPlus HarvestTier = "A+"
	HarvestA     HarvestTier = "A"
	HarvestB     HarvestTier = "B"
	HarvestC     HarvestTier = "C"
	HarvestD     HarvestTier = "D"
)

// Weights of the final composite.
const (
	WeightRelevance    = 0.45
	WeightReplyability = 0.25
	WeightContext      = 0.30
)

// Ranking is everything the ranker derives for one candidate.
type Ranking struct {
	Final       float64     `json:"opportunity_score_final"`
	Legacy      float64     `json:"legacy_score"`
	ValueTier   ValueTier   `json:"value_tier"`
	HarvestTier HarvestTier `json:"harvest_tier"`
}

// Rank computes the final and legacy scores plus both tiers.
func Rank(c candidate.Candidate, q quality.Result, s signals.Scores) Ranking {
	tier := AssignValueTier(c)
	return Ranking{
		Final:       FinalScore(s),
		Legacy:      LegacyScore(c, q.Multiplier, tier),
		ValueTier:   tier,
		HarvestTier: ClassifyHarvestTier(c.Likes, c.Views),
	}
}

// FinalScore is the weighted composite of the three signals.
func FinalScore(s signals.Scores) float64 {
	return WeightRelevance*s.Relevance +
		WeightReplyability*s.Replyability +
		WeightContext*s.ContextSimilarity
}

// LegacyScore is the magnitude-based score kept for backward-compatible
// ordering: base metric scaled by freshness, velocity, quality and tier.
func LegacyScore(c candidate.Candidate, qualityMultiplier float64, tier ValueTier) float64 {
	base, ok := c.Views.Get()
	if !ok {
		base, _ = c.Likes.Get()
	}
	return float64(base) *
		FreshnessMultiplier(c.AgeMinutes, c.AgeKnown) *
		VelocityMultiplier(c.Velocity, c.VelocityKnown()) *
		qualityMultiplier *
		TierMultiplier(tier)
}

// FreshnessMultiplier decays stepwise with age. Unknown age is neutral.
func FreshnessMultiplier(ageMinutes int, known bool) float64 {
	if !known {
		return 1.0
	}
	switch {
	case ageMinutes <= 30:
		return 2.0
	case ageMinutes <= 90:
		return 1.5
	case ageMinutes <= 180:
		return 1.0
	case ageMinutes <= 360:
		return 0.7
	default:
		return 0.5
	}
}

// VelocityMultiplier is velocity/10 clamped to [0.8, 2.0]. Unknown velocity
// is neutral.
func VelocityMultiplier(velocity float64, known bool) float64 {
	if !known {
		return 1.0
	}
	return max(0.8, min(velocity/10, 2.0))
}

// TierMultiplier weights the legacy score by value tier.
func TierMultiplier(t ValueTier) float64 {
	switch t {
	case TierS:
		return 2.0
	case TierA:
		return 1.5
	default:
		return 1.0
	}
}

// AssignValueTier returns S, A or B. Candidates with unknown likes or age are
// always B.
func AssignValueTier(c candidate.Candidate) ValueTier {
	likes, ok := c.Likes.Get()
	if !ok || !c.AgeKnown {
		return TierB
	}
	switch {
	case c.AgeMinutes <= 90 && (likes >= 500 || c.Velocity >= 8):
		return TierS
	case c.AgeMinutes <= 180 && (likes >= 200 || c.Velocity >= 3):
		return TierA
	default:
		return TierB
	}
}

// ClassifyHarvestTier buckets by absolute magnitude.
func ClassifyHarvestTier(likes, views candidate.Count) HarvestTier {
	switch {
	case views.AtLeast(1_000_000) || likes.AtLeast(100_000):
		return HarvestAPlus
	case likes.AtLeast(100_000):
		// Shadowed by A+ under the current thresholds.
		return HarvestA
	case likes.AtLeast(25_000):
		return HarvestB
	case likes.AtLeast(10_000):
		return HarvestC
	default:
		return HarvestD
	}
}
