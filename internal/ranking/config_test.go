package ranking

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultWeights verifies the default weight configuration.
func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	if w.Feed.Engagement != 0.6 {
		t.Errorf("expected feed.engagement 0.6, got %f", w.Feed.Engagement)
	}
	if w.Feed.Recency != 0.3 {
		t.Errorf("expected feed.recency 0.3, got %f", w.Feed.Recency)
	}
	if w.Feed.Diversity != 0.1 {
		t.Errorf("expected feed.diversity 0.1, got %f", w.Feed.Diversity)
	}
	if w.Feed.Impression != 0.0 {
		t.Errorf("expected feed.impression 0.0, got %f", w.Feed.Impression)
	}
}

// TestLoadCalibration_EmptyPath returns defaults without error.
func TestLoadCalibration_EmptyPath(t *testing.T) {
	w, err := LoadCalibration("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *w != *DefaultWeights() {
		t.Errorf("expected defaults, got %+v", w)
	}
}

// TestLoadCalibration_MissingFile returns defaults with an error.
func TestLoadCalibration_MissingFile(t *testing.T) {
	w, err := LoadCalibration("/nonexistent/calibration.json")
	if err == nil {
		t.Error("expected error for missing file")
	}
	if w == nil || *w != *DefaultWeights() {
		t.Errorf("expected default weights on error, got %+v", w)
	}
}

// TestLoadCalibration_InvalidJSON returns defaults with an error.
func TestLoadCalibration_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := LoadCalibration(path)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
	if w == nil || *w != *DefaultWeights() {
		t.Errorf("expected default weights on error, got %+v", w)
	}
}

// TestLoadCalibration_PartialOverride merges file values over defaults.
func TestLoadCalibration_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	content := `{"version":"1","weights":{"feed":{"recency":0.5,"impression":0.05}}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.Feed.Recency != 0.5 {
		t.Errorf("expected overridden recency 0.5, got %f", w.Feed.Recency)
	}
	if w.Feed.Impression != 0.05 {
		t.Errorf("expected overridden impression 0.05, got %f", w.Feed.Impression)
	}
	// Untouched fields keep defaults.
	if w.Feed.Engagement != 0.6 {
		t.Errorf("expected default engagement 0.6, got %f", w.Feed.Engagement)
	}
	if w.Feed.Diversity != 0.1 {
		t.Errorf("expected default diversity 0.1, got %f", w.Feed.Diversity)
	}
}

// TestMergeCalibration covers nil handling and zero-value skipping.
func TestMergeCalibration(t *testing.T) {
	tests := []struct {
		name     string
		base     *Weights
		override *Weights
		expected FeedWeights
	}{
		{
			name:     "nil base falls back to defaults",
			base:     nil,
			override: &Weights{Feed: FeedWeights{Recency: 0.9}},
			expected: DefaultWeights().Feed,
		},
		{
			name:     "nil override copies base",
			base:     &Weights{Feed: FeedWeights{Engagement: 0.7, Recency: 0.2, Diversity: 0.1}},
			override: nil,
			expected: FeedWeights{Engagement: 0.7, Recency: 0.2, Diversity: 0.1},
		},
		{
			name:     "zero values are not applied",
			base:     DefaultWeights(),
			override: &Weights{},
			expected: DefaultWeights().Feed,
		},
		{
			name:     "non-zero values override",
			base:     DefaultWeights(),
			override: &Weights{Feed: FeedWeights{Engagement: 0.8}},
			expected: FeedWeights{Engagement: 0.8, Recency: 0.3, Diversity: 0.1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MergeCalibration(tt.base, tt.override)
			if result.Feed != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, result.Feed)
			}
		})
	}
}
