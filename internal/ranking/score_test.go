package ranking

import (
	"math"
	"testing"
	"time"
)

// TestEngagementScore tests the effort-weighted engagement score.
func TestEngagementScore(t *testing.T) {
	tests := []struct {
		name     string
		likes    int
		reposts  int
		replies  int
		expected float64
	}{
		{
			name:     "likes only",
			likes:    100,
			expected: 1.0, // 100/100
		},
		{
			name:     "replies only",
			replies:  10,
			expected: 3.0, // 30/10
		},
		{
			name:     "reposts only",
			reposts:  5,
			expected: 2.0, // 10/5
		},
		{
			name:     "mixed reactions",
			likes:    2,
			reposts:  1,
			replies:  1,
			expected: 1.75, // (2 + 2 + 3) / 4
		},
		{
			name:     "no reactions",
			expected: 0.0, // 0 / max(1, 0)
		},
		{
			name:     "single like does not divide by zero",
			likes:    1,
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EngagementScore(tt.likes, tt.reposts, tt.replies)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestRecencyScore tests the exponential age decay.
func TestRecencyScore(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		age      time.Duration
		expected float64
	}{
		{
			name:     "created now",
			age:      0,
			expected: 1.0,
		},
		{
			name:     "24 hours old (one decay constant)",
			age:      24 * time.Hour,
			expected: math.Exp(-1),
		},
		{
			name:     "48 hours old",
			age:      48 * time.Hour,
			expected: math.Exp(-2),
		},
		{
			name:     "future timestamp clamped to now",
			age:      -2 * time.Hour,
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RecencyScore(now.Add(-tt.age), now)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestRecencyScore_Properties verifies the (0, 1] bound and strict
// monotonic decrease with age.
func TestRecencyScore_Properties(t *testing.T) {
	now := time.Now()

	prev := 2.0
	for hours := 0; hours <= 240; hours += 12 {
		score := RecencyScore(now.Add(-time.Duration(hours)*time.Hour), now)
		if score <= 0 || score > 1 {
			t.Errorf("score %f at age %dh outside (0, 1]", score, hours)
		}
		if score >= prev {
			t.Errorf("score %f at age %dh not strictly decreasing (prev %f)", score, hours, prev)
		}
		prev = score
	}
}

// TestDiversityScore tests the repeat-author penalty.
func TestDiversityScore(t *testing.T) {
	tests := []struct {
		name             string
		priorEngagements int
		expected         float64
	}{
		{
			name:             "no prior engagements",
			priorEngagements: 0,
			expected:         1.0,
		},
		{
			name:             "one prior engagement",
			priorEngagements: 1,
			expected:         1.0 / 1.1,
		},
		{
			name:             "ten prior engagements",
			priorEngagements: 10,
			expected:         0.5,
		},
		{
			name:             "negative count clamped",
			priorEngagements: -3,
			expected:         1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DiversityScore(tt.priorEngagements)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestImpressionScore tests the saturating impression volume score.
func TestImpressionScore(t *testing.T) {
	if got := ImpressionScore(0); got != 0 {
		t.Errorf("expected 0 for zero impressions, got %f", got)
	}
	if got := ImpressionScore(-5); got != 0 {
		t.Errorf("expected 0 for negative impressions, got %f", got)
	}

	small := ImpressionScore(10)
	large := ImpressionScore(100_000)
	if small <= 0 || small >= 1 {
		t.Errorf("score %f for 10 impressions outside (0, 1)", small)
	}
	if large <= small {
		t.Errorf("score should grow with volume: %f <= %f", large, small)
	}
	if large >= 1 {
		t.Errorf("score %f for 100k impressions should stay below 1", large)
	}
}

// TestTrendScore tests the short-window trending velocity score.
func TestTrendScore(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		likes       int
		impressions int
		age         time.Duration
		expected    float64
	}{
		{
			name:        "fresh post, perfect velocity",
			likes:       10,
			impressions: 10,
			age:         0,
			expected:    1.0,
		},
		{
			name:        "fresh post, low velocity",
			likes:       5,
			impressions: 100,
			age:         0,
			expected:    0.05,
		},
		{
			name:        "six hours old (one decay constant)",
			likes:       10,
			impressions: 10,
			age:         6 * time.Hour,
			expected:    math.Exp(-1),
		},
		{
			name:        "zero impressions uses floor of 1",
			likes:       3,
			impressions: 0,
			age:         0,
			expected:    3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrendScore(tt.likes, tt.impressions, now.Add(-tt.age), now)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestPopularityTier tests the engagement-rate classification thresholds.
func TestPopularityTier(t *testing.T) {
	tests := []struct {
		name        string
		likes       int
		reposts     int
		replies     int
		impressions int
		expected    Popularity
	}{
		{
			name:        "viral above 10 percent",
			likes:       15,
			impressions: 100,
			expected:    PopularityViral,
		},
		{
			name:        "trending above 5 percent",
			likes:       8,
			impressions: 100,
			expected:    PopularityTrending,
		},
		{
			name:        "popular above 2 percent",
			likes:       3,
			impressions: 100,
			expected:    PopularityPopular,
		},
		{
			name:        "normal at or below 2 percent",
			likes:       2,
			impressions: 100,
			expected:    PopularityNormal,
		},
		{
			name:        "exactly at viral threshold is not viral",
			likes:       10,
			impressions: 100,
			expected:    PopularityTrending,
		},
		{
			name:        "no impressions uses floor of 1",
			likes:       1,
			impressions: 0,
			expected:    PopularityViral, // 1/1 = 1.0 > 0.10
		},
		{
			name:     "dead post",
			expected: PopularityNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PopularityTier(tt.likes, tt.reposts, tt.replies, tt.impressions)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

// TestPopularityTier_Deterministic verifies repeat calls with the same
// counters return the same tier.
func TestPopularityTier_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		if got := PopularityTier(7, 2, 1, 150); got != PopularityTrending {
			t.Fatalf("call %d: expected trending, got %s", i, got)
		}
	}
}

// TestCompositeScore tests weight application and the recent boost.
func TestCompositeScore(t *testing.T) {
	params := ScoreParams{
		Engagement: 1.0,
		Recency:    1.0,
		Diversity:  1.0,
		Impression: 0.5,
	}

	// Default weights: 0.6 + 0.3 + 0.1 = 1.0; impression weighted at zero.
	score := CompositeScore(params, nil)
	if math.Abs(score-1.0) > 0.0001 {
		t.Errorf("expected 1.0 under default weights, got %f", score)
	}

	// Boost multiplies the composite.
	params.BoostRecent = true
	boosted := CompositeScore(params, nil)
	if math.Abs(boosted-1.2) > 0.0001 {
		t.Errorf("expected 1.2 with boost, got %f", boosted)
	}

	// Custom weights activate the impression term.
	weights := &Weights{Feed: FeedWeights{Engagement: 0.5, Recency: 0.2, Diversity: 0.1, Impression: 0.2}}
	params.BoostRecent = false
	custom := CompositeScore(params, weights)
	expected := 0.5 + 0.2 + 0.1 + 0.5*0.2
	if math.Abs(custom-expected) > 0.0001 {
		t.Errorf("expected %f with custom weights, got %f", expected, custom)
	}
}

// TestCompositeScore_FreshVersusStale reproduces the reference ranking
// scenario: a fresh heavily-liked post must outrank a 48h-old post with
// identical engagement quality.
func TestCompositeScore_FreshVersusStale(t *testing.T) {
	now := time.Now()

	// Post A: created now, 100 likes, 1000 impressions.
	scoreA := CompositeScore(ScoreParams{
		Engagement: EngagementScore(100, 0, 0),
		Recency:    RecencyScore(now, now),
		Diversity:  DiversityScore(0),
		Impression: ImpressionScore(1000),
	}, nil)

	// Post B: created 48h ago, 10 likes, 50 impressions.
	scoreB := CompositeScore(ScoreParams{
		Engagement: EngagementScore(10, 0, 0),
		Recency:    RecencyScore(now.Add(-48*time.Hour), now),
		Diversity:  DiversityScore(0),
		Impression: ImpressionScore(50),
	}, nil)

	// Component expectations: engagement 1.0 for both, recency 1.0 vs exp(-2).
	if math.Abs(scoreA-(0.6+0.3+0.1)) > 0.0001 {
		t.Errorf("expected composite(A)=1.0, got %f", scoreA)
	}
	expectedB := 0.6 + 0.3*math.Exp(-2) + 0.1
	if math.Abs(scoreB-expectedB) > 0.0001 {
		t.Errorf("expected composite(B)=%f, got %f", expectedB, scoreB)
	}
	if scoreA <= scoreB {
		t.Errorf("fresh post must outrank stale post: %f <= %f", scoreA, scoreB)
	}
}

// TestEngagementRate tests the raw engagement-per-impression rate.
func TestEngagementRate(t *testing.T) {
	if got := EngagementRate(5, 3, 2, 100); math.Abs(got-0.1) > 0.0001 {
		t.Errorf("expected 0.1, got %f", got)
	}
	if got := EngagementRate(2, 0, 0, 0); math.Abs(got-2.0) > 0.0001 {
		t.Errorf("expected 2.0 with impression floor, got %f", got)
	}
}
