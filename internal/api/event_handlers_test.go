package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecordImpression_Valid(t *testing.T) {
	a := newTestAPI(t)
	p := a.createPost(t, "alice", "post body")

	rec := a.do(t, http.MethodPost, "/impressions", RecordImpressionRequest{
		PostID:         p.ID,
		UserID:         "u1",
		ViewDurationMs: 2500,
		ScrollDepth:    0.8,
		InViewport:     true,
		DeviceType:     "tablet",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["post_id"] != p.ID || body["user_id"] != "u1" {
		t.Errorf("unexpected subject: %v", body)
	}
	if body["device_type"] != "tablet" {
		t.Errorf("expected tablet device, got %v", body["device_type"])
	}
	if body["id"] == "" {
		t.Error("expected generated event ID")
	}
}

func TestRecordImpression_UnknownPostStillCounts(t *testing.T) {
	a := newTestAPI(t)

	// No such post in the repository; the impression is still accepted
	// because history and counters are separate stores.
	rec := a.do(t, http.MethodPost, "/impressions", RecordImpressionRequest{
		PostID: "ghost-1", UserID: "u1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	stats := a.engine.Statistics("u1")
	if stats.TotalImpressions != 1 {
		t.Errorf("expected 1 impression in history, got %d", stats.TotalImpressions)
	}
}

func TestRecordImpression_Validation(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name     string
		req      RecordImpressionRequest
		wantCode string
	}{
		{"missing post_id", RecordImpressionRequest{UserID: "u1"}, ErrCodeValidation},
		{"missing user_id", RecordImpressionRequest{PostID: "p1"}, ErrCodeValidation},
		{"missing both", RecordImpressionRequest{}, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/impressions", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestRecordImpression_MalformedJSON(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/impressions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected %s, got %s", ErrCodeBadRequest, resp.Error.Code)
	}
}

func TestRecordImpression_MethodNotAllowed(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/impressions", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRecordEngagement_Valid(t *testing.T) {
	a := newTestAPI(t)
	p := a.createPost(t, "alice", "post body")

	for _, typ := range []string{"like", "repost", "reply", "share"} {
		rec := a.do(t, http.MethodPost, "/engagements", RecordEngagementRequest{
			PostID: p.ID, UserID: "u1", Type: typ,
		})
		if rec.Code != http.StatusCreated {
			t.Errorf("%s: expected 201, got %d: %s", typ, rec.Code, rec.Body.String())
		}
	}

	got, err := a.repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	// Shares are recorded in history but have no repository counter.
	if got.Engagement.Likes != 1 || got.Engagement.Reposts != 1 || got.Engagement.Replies != 1 {
		t.Errorf("unexpected counters: %+v", got.Engagement)
	}
}

func TestRecordEngagement_InvalidType(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/engagements", RecordEngagementRequest{
		PostID: "p1", UserID: "u1", Type: "bookmark",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error.Code != ErrCodeInvalidEngagementType {
		t.Errorf("expected %s, got %s", ErrCodeInvalidEngagementType, resp.Error.Code)
	}
}

func TestRecordEngagement_MissingIDs(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/engagements", RecordEngagementRequest{
		UserID: "u1", Type: "like",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected %s, got %s", ErrCodeValidation, resp.Error.Code)
	}
}

func TestRecordEngagement_MetadataRoundTrip(t *testing.T) {
	a := newTestAPI(t)
	p := a.createPost(t, "alice", "post body")

	rec := a.do(t, http.MethodPost, "/engagements", RecordEngagementRequest{
		PostID:   p.ID,
		UserID:   "u1",
		Type:     "share",
		Metadata: map[string]string{"channel": "dm"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	meta, ok := body["metadata"].(map[string]any)
	if !ok || meta["channel"] != "dm" {
		t.Errorf("expected metadata to round-trip, got %v", body["metadata"])
	}
}
