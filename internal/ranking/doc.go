// Package ranking provides centralized ranking component calculations
// with calibration support for feed generation and discovery features.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	// Calculate a post's composite feed score
//	params := ranking.ScoreParams{
//		Engagement: ranking.EngagementScore(post.Likes, post.Reposts, post.Replies),
//		Recency:    ranking.RecencyScore(post.CreatedAt, time.Now()),
//		Diversity:  ranking.DiversityScore(priorAuthorEngagements),
//		Impression: ranking.ImpressionScore(post.ImpressionCount),
//	}
//	score := ranking.CompositeScore(params, weights)
//
// Weight Functions:
//
// All weight functions return values in a bounded range and are designed
// to be composable. Use them to calculate individual ranking components
// before combining them with CompositeScore.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of ranking weights via
// JSON configuration files loaded at startup. This enables A/B testing and
// optimization without code changes (but requires a redeploy or restart to
// pick up new configuration). See configs/ranking.calibration.json for the
// default configuration.
package ranking
