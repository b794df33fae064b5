package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/post"
)

func newTestHandler(t *testing.T) (*Handler, *feed.Engine, *post.InMemoryRepository) {
	t.Helper()
	repo := post.NewInMemoryRepository()
	engine := feed.NewEngine(feed.Config{}, nil, nil, nil, nil, nil)
	h := NewHandler(engine, repo, nil, nil)
	return h, engine, repo
}

func mustJSON(t *testing.T, env Envelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return data
}

func TestHandler_Impression(t *testing.T) {
	h, engine, repo := newTestHandler(t)

	p := &post.Post{AuthorID: "alice", Content: "hello", CreatedAt: time.Now()}
	if err := repo.Create(p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	payload := mustJSON(t, Envelope{
		Kind:           "impression",
		PostID:         p.ID,
		UserID:         "u1",
		ViewDurationMs: 800,
		DeviceType:     "mobile",
	})
	if err := h.Handle(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	stats := engine.Statistics("u1")
	if stats.TotalImpressions != 1 {
		t.Errorf("expected 1 impression, got %d", stats.TotalImpressions)
	}

	got, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ImpressionCount != 1 {
		t.Errorf("expected counter 1, got %d", got.ImpressionCount)
	}
}

func TestHandler_Engagement(t *testing.T) {
	h, engine, repo := newTestHandler(t)

	p := &post.Post{AuthorID: "alice", Content: "hello", CreatedAt: time.Now()}
	if err := repo.Create(p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	payload := mustJSON(t, Envelope{
		Kind:   "engagement",
		PostID: p.ID,
		UserID: "u1",
		Type:   "repost",
	})
	if err := h.Handle(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	stats := engine.Statistics("u1")
	if stats.TotalEngagements != 1 {
		t.Errorf("expected 1 engagement, got %d", stats.TotalEngagements)
	}

	got, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Engagement.Reposts != 1 {
		t.Errorf("expected 1 repost, got %d", got.Engagement.Reposts)
	}
}

// TestHandler_BadMessagesDoNotDisconnect verifies that malformed or invalid
// messages are skipped without returning an error to the client.
func TestHandler_BadMessagesDoNotDisconnect(t *testing.T) {
	h, engine, _ := newTestHandler(t)

	cases := [][]byte{
		[]byte("{not json"),
		mustJSON(t, Envelope{Kind: "reaction", PostID: "p1", UserID: "u1"}),
		mustJSON(t, Envelope{Kind: "engagement", PostID: "p1", UserID: "u1", Type: "bookmark"}),
		mustJSON(t, Envelope{Kind: "impression", UserID: "u1"}),
	}

	for i, payload := range cases {
		if err := h.Handle(websocket.TextMessage, payload); err != nil {
			t.Errorf("case %d: expected nil error, got %v", i, err)
		}
	}

	stats := engine.Statistics("u1")
	if stats.TotalImpressions != 0 || stats.TotalEngagements != 0 {
		t.Errorf("expected no history from bad messages, got %+v", stats)
	}
}

func TestHandler_UnknownPostStillRecorded(t *testing.T) {
	h, engine, _ := newTestHandler(t)

	payload := mustJSON(t, Envelope{
		Kind:   "engagement",
		PostID: "ghost-1",
		UserID: "u1",
		Type:   "like",
	})
	if err := h.Handle(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	stats := engine.Statistics("u1")
	if stats.TotalEngagements != 1 {
		t.Errorf("expected engagement in history despite unknown post, got %d", stats.TotalEngagements)
	}
}
