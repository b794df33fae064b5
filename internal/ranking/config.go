package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// FeedWeights defines the ranking weights for main feed generation.
type FeedWeights struct {
	Engagement float64 `json:"engagement"` // Weight for engagement score (default: 0.6)
	Recency    float64 `json:"recency"`    // Weight for recency decay (default: 0.3)
	Diversity  float64 `json:"diversity"`  // Weight for author diversity (default: 0.1)
	Impression float64 `json:"impression"` // Weight for impression volume (default: 0, observability only)
}

// Weights holds all ranking weight configurations.
type Weights struct {
	Feed FeedWeights `json:"feed"` // Main feed weights
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default ranking weight configuration.
//
// Feed formula: composite = (engagement * 0.6) + (recency * 0.3) + (diversity * 0.1)
// - Engagement dominates: effort-weighted reactions are the strongest signal
// - Recency keeps the feed fresh on a ~24h decay
// - Diversity penalizes repeated exposure to the same author
// - Impression volume is computed but weighted at zero pending calibration data
func DefaultWeights() *Weights {
	return &Weights{
		Feed: FeedWeights{
			Engagement: 0.6,
			Recency:    0.3,
			Diversity:  0.1,
			Impression: 0.0,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with an error.
// Partial configurations are merged with defaults for graceful degradation.
//
// Because the merge only applies non-zero values, a calibration file
// cannot set a weight to exactly 0 to disable a term that defaults
// non-zero (use a tiny value like 0.001 instead); it can, however,
// activate the zero-default impression weight.
//
// Parameters:
//   - filePath: Path to the calibration JSON file
//
// Returns the loaded weights and any error encountered.
// On error, returns default weights to ensure graceful degradation.
func LoadCalibration(filePath string) (*Weights, error) {
	// Return defaults if no file path provided
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	// Merge loaded weights with defaults to handle partial configurations
	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with default weights.
// Only non-zero values from the override are applied, which allows
// partial overrides in the calibration file. The impression weight
// defaults to zero, so a calibration file activating it is by definition
// a non-zero override.
//
// Parameters:
//   - base: The base weights to start from (typically defaults)
//   - override: The override weights to merge in
//
// Returns a new Weights struct with merged values.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	// Guard against nil base to avoid panics; fall back to defaults.
	if base == nil {
		return DefaultWeights()
	}

	// If there is no override provided, return a copy of the base.
	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base

	if override.Feed.Engagement != 0 {
		result.Feed.Engagement = override.Feed.Engagement
	}
	if override.Feed.Recency != 0 {
		result.Feed.Recency = override.Feed.Recency
	}
	if override.Feed.Diversity != 0 {
		result.Feed.Diversity = override.Feed.Diversity
	}
	if override.Feed.Impression != 0 {
		result.Feed.Impression = override.Feed.Impression
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Feed.Engagement != defaults.Feed.Engagement {
		overrides = append(overrides, fmt.Sprintf("feed.engagement: %.2f -> %.2f",
			defaults.Feed.Engagement, loaded.Feed.Engagement))
	}
	if loaded.Feed.Recency != defaults.Feed.Recency {
		overrides = append(overrides, fmt.Sprintf("feed.recency: %.2f -> %.2f",
			defaults.Feed.Recency, loaded.Feed.Recency))
	}
	if loaded.Feed.Diversity != defaults.Feed.Diversity {
		overrides = append(overrides, fmt.Sprintf("feed.diversity: %.2f -> %.2f",
			defaults.Feed.Diversity, loaded.Feed.Diversity))
	}
	if loaded.Feed.Impression != defaults.Feed.Impression {
		overrides = append(overrides, fmt.Sprintf("feed.impression: %.2f -> %.2f",
			defaults.Feed.Impression, loaded.Feed.Impression))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
