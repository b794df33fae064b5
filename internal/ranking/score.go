// Package ranking provides centralized ranking component calculations
// with calibration support for feed generation and discovery features.
package ranking

import (
	"math"
	"time"
)

// Decay half-lives and tuning constants for the scoring functions.
const (
	// FeedDecayHours is the recency decay constant for the main feed (~24h half-life).
	FeedDecayHours = 24.0

	// TrendingDecayHours is the much shorter decay constant for trending (~6h),
	// biasing toward very recent engagement velocity.
	TrendingDecayHours = 6.0

	// DiversityPenalty is the per-engagement penalty factor applied when a user
	// has repeatedly engaged with the same author.
	DiversityPenalty = 0.1

	// RecentBoostFactor multiplies the composite score when the caller asks
	// for recency-boosted ranking.
	RecentBoostFactor = 1.2
)

// Popularity tiers for a post, derived from its engagement-per-impression rate.
type Popularity string

// Popularity tier values, ordered from hottest to coldest.
const (
	PopularityViral    Popularity = "viral"
	PopularityTrending Popularity = "trending"
	PopularityPopular  Popularity = "popular"
	PopularityNormal   Popularity = "normal"
)

// Popularity rate thresholds (engagements per impression).
const (
	viralThreshold    = 0.10
	trendingThreshold = 0.05
	popularThreshold  = 0.02
)

// EngagementScore computes the effort-weighted mean of a post's reactions.
// Higher-effort engagement types earn more credit: a reply costs more
// attention than a repost, which costs more than a like. The sum is
// normalized by the total reaction count so raw volume alone does not
// dominate the ratio.
//
// Returns 0 for a post with no reactions, otherwise a value in [1, 3].
func EngagementScore(likes, reposts, replies int) float64 {
	total := likes + reposts + replies
	weighted := float64(likes) + float64(reposts)*2 + float64(replies)*3
	return weighted / math.Max(1, float64(total))
}

// RecencyScore computes an exponential age decay normalized to (0, 1].
// A post scores 1.0 exactly at creation time and decays with a half-life
// tuned to roughly FeedDecayHours.
//
// Posts with a creation time in the future (clock skew between writers)
// are clamped to age zero.
func RecencyScore(createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-ageHours / FeedDecayHours)
}

// DiversityScore computes the repeat-author penalty factor in (0, 1].
// priorEngagements is the count of the user's past engagements with posts
// by the same author. Zero prior engagements yields 1.0; the score decays
// as 1/(1 + DiversityPenalty*k).
func DiversityScore(priorEngagements int) float64 {
	if priorEngagements < 0 {
		priorEngagements = 0
	}
	return 1.0 / (1.0 + DiversityPenalty*float64(priorEngagements))
}

// ImpressionScore computes a logarithmic saturation score for raw
// impression volume, normalized to [0, 1) for realistic counts.
//
// The composite formula currently assigns this component zero weight; it
// is computed and exported only for observability and future tuning.
// See Weights.Feed.Impression.
func ImpressionScore(impressions int) float64 {
	if impressions <= 0 {
		return 0
	}
	return math.Log1p(float64(impressions)) / math.Log1p(1_000_000)
}

// TrendScore computes the trending score for a post: engagement velocity
// (likes per impression) decayed on the short TrendingDecayHours window.
func TrendScore(likes, impressions int, createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	rate := float64(likes) / math.Max(1, float64(impressions))
	return rate * math.Exp(-ageHours/TrendingDecayHours)
}

// EngagementRate computes total engagements per impression for a post.
func EngagementRate(likes, reposts, replies, impressions int) float64 {
	return float64(likes+reposts+replies) / math.Max(1, float64(impressions))
}

// PopularityTier classifies a post by its engagement-per-impression rate.
// Pure function of the counters; no side effects.
func PopularityTier(likes, reposts, replies, impressions int) Popularity {
	rate := EngagementRate(likes, reposts, replies, impressions)
	switch {
	case rate > viralThreshold:
		return PopularityViral
	case rate > trendingThreshold:
		return PopularityTrending
	case rate > popularThreshold:
		return PopularityPopular
	default:
		return PopularityNormal
	}
}

// ScoreParams holds the component scores for computing a composite feed score.
type ScoreParams struct {
	Engagement float64 // Effort-weighted engagement score
	Recency    float64 // Recency decay score [0, 1]
	Diversity  float64 // Repeat-author penalty (0, 1]
	Impression float64 // Impression saturation score [0, 1), zero-weighted
	BoostRecent bool   // Apply RecentBoostFactor to the composite
}

// CompositeScore computes the final composite feed score for a post.
// Uses the calibrated weights to combine engagement, recency, and
// diversity scores.
//
// Default formula: composite = (engagement * 0.6) + (recency * 0.3) + (diversity * 0.1)
//
// The impression component is combined with a default weight of zero:
// it contributes nothing under the default calibration but remains part
// of the formula so a calibration file can activate it without a code
// change. When params.BoostRecent is set, the composite is multiplied by
// RecentBoostFactor.
//
// Parameters:
//   - params: The component scores and boost flag
//   - weights: The calibrated weight configuration (optional, uses default if nil)
func CompositeScore(params ScoreParams, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	score := (params.Engagement * weights.Feed.Engagement) +
		(params.Recency * weights.Feed.Recency) +
		(params.Diversity * weights.Feed.Diversity) +
		(params.Impression * weights.Feed.Impression)

	if params.BoostRecent {
		score *= RecentBoostFactor
	}

	return score
}
