package feed

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/pulsenote/pulsenote/internal/event"
	"github.com/pulsenote/pulsenote/internal/post"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if m.impressionsRecorded == nil {
		t.Error("impressionsRecorded is nil")
	}
	if m.engagementsRecorded == nil {
		t.Error("engagementsRecorded is nil")
	}
	if m.cacheHits == nil || m.cacheMisses == nil {
		t.Error("cache counters are nil")
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	// Double registration fails.
	if err := m.Register(reg); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

// TestMetrics_EngineCounters drives the engine and verifies counter values
// through the registry.
func TestMetrics_EngineCounters(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	e := NewEngine(Config{}, nil, nil, nil, nil, m)
	ctx := context.Background()

	if _, err := e.RecordImpression(ctx, "p1", "u1", nil); err != nil {
		t.Fatalf("RecordImpression failed: %v", err)
	}
	if _, err := e.RecordEngagement(ctx, "p1", "u1", event.EngagementLike, nil); err != nil {
		t.Fatalf("RecordEngagement failed: %v", err)
	}

	posts := []*post.Post{{ID: "a-1", AuthorID: "a", Content: "c", CreatedAt: time.Now()}}
	e.GenerateFeed(ctx, posts, "u1", Preferences{}) // miss
	e.GenerateFeed(ctx, posts, "u1", Preferences{}) // hit

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	counters := map[string]float64{}
	for _, mf := range families {
		switch mf.GetName() {
		case MetricImpressionsRecorded, MetricCacheHits, MetricCacheMisses:
			counters[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
		case MetricEngagementsRecorded:
			for _, metric := range mf.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "type" && label.GetValue() == "like" {
						counters[mf.GetName()] = metric.GetCounter().GetValue()
					}
				}
			}
		}
	}

	expected := map[string]float64{
		MetricImpressionsRecorded: 1,
		MetricEngagementsRecorded: 1,
		MetricCacheHits:           1,
		MetricCacheMisses:         1,
	}
	for name, want := range expected {
		if counters[name] != want {
			t.Errorf("%s: expected %v, got %v", name, want, counters[name])
		}
	}

	for _, mf := range families {
		if mf.GetName() == MetricImpressionsRecorded && mf.GetType() != dto.MetricType_COUNTER {
			t.Errorf("expected counter type for %s", MetricImpressionsRecorded)
		}
	}
}
