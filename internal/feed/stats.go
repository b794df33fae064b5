package feed

import (
	"log/slog"
	"math"

	"github.com/pulsenote/pulsenote/internal/event"
)

// Statistics aggregates a user's recorded impression and engagement
// history. All fields derive from the engine's in-memory lists; reading
// them performs no mutation.
type Statistics struct {
	UserID              string                       `json:"user_id"`
	TotalImpressions    int                          `json:"total_impressions"`
	TotalEngagements    int                          `json:"total_engagements"`
	EngagementRate      float64                      `json:"engagement_rate"`
	MeanViewDurationMs  float64                      `json:"mean_view_duration_ms"`
	EngagementBreakdown map[event.EngagementType]int `json:"engagement_breakdown"`
	DeviceBreakdown     map[event.DeviceType]int     `json:"device_breakdown"`
}

// Statistics derives aggregate counters from a user's history.
func (e *Engine) Statistics(userID string) Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	impressions := e.impressions[userID]
	engagements := e.engagements[userID]

	stats := Statistics{
		UserID:              userID,
		TotalImpressions:    len(impressions),
		TotalEngagements:    len(engagements),
		EngagementBreakdown: make(map[event.EngagementType]int),
		DeviceBreakdown:     make(map[event.DeviceType]int),
	}

	stats.EngagementRate = float64(len(engagements)) / math.Max(1, float64(len(impressions)))

	var totalViewMs int64
	for _, imp := range impressions {
		totalViewMs += imp.ViewDurationMs
		stats.DeviceBreakdown[imp.DeviceType]++
	}
	if len(impressions) > 0 {
		stats.MeanViewDurationMs = float64(totalViewMs) / float64(len(impressions))
	}

	for _, eng := range engagements {
		stats.EngagementBreakdown[eng.Type]++
	}

	return stats
}

// LogSummary logs a summary of a user's statistics at INFO level.
// Useful for periodic reporting.
func (s Statistics) LogSummary(logger *slog.Logger) {
	logger.Info("user engagement statistics",
		"user_id", s.UserID,
		"impressions", s.TotalImpressions,
		"engagements", s.TotalEngagements,
		"engagement_rate", s.EngagementRate,
		"mean_view_duration_ms", s.MeanViewDurationMs,
	)
}
