package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pulsenote/pulsenote/internal/event"
	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/middleware"
	"github.com/pulsenote/pulsenote/internal/post"
)

// RecordImpressionRequest represents the request body for recording an impression.
type RecordImpressionRequest struct {
	PostID         string  `json:"post_id"`
	UserID         string  `json:"user_id"`
	ViewDurationMs int64   `json:"view_duration_ms,omitempty"`
	ScrollDepth    float64 `json:"scroll_depth,omitempty"`
	InViewport     bool    `json:"in_viewport,omitempty"`
	DeviceType     string  `json:"device_type,omitempty"`
}

// RecordEngagementRequest represents the request body for recording an engagement.
type RecordEngagementRequest struct {
	PostID   string            `json:"post_id"`
	UserID   string            `json:"user_id"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EventHandlers holds dependencies for impression and engagement HTTP handlers.
type EventHandlers struct {
	engine *feed.Engine
	repo   post.Repository
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(engine *feed.Engine, repo post.Repository) *EventHandlers {
	return &EventHandlers{
		engine: engine,
		repo:   repo,
	}
}

// RecordImpression handles POST /impressions.
// Records an impression against the engine's history and bumps the post's
// impression counter when the post is known to the repository.
func (h *EventHandlers) RecordImpression(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RecordImpressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	meta := &event.ImpressionMeta{
		ViewDurationMs: req.ViewDurationMs,
		ScrollDepth:    req.ScrollDepth,
		InViewport:     req.InViewport,
		DeviceType:     event.DeviceType(req.DeviceType),
	}

	imp, err := h.engine.RecordImpression(ctx, req.PostID, req.UserID, meta)
	if err != nil {
		if errors.Is(err, feed.ErrInvalidInput) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "post_id and user_id are required")
			return
		}
		slog.ErrorContext(ctx, "failed to record impression", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record impression")
		return
	}

	// Counter bump is best effort. Impressions for posts the repository
	// does not know about still count toward per-user history.
	if err := h.repo.IncrementImpressions(req.PostID); err != nil && !errors.Is(err, post.ErrPostNotFound) {
		slog.WarnContext(ctx, "failed to increment impression counter", "post_id", req.PostID, "error", err)
	}

	writeJSON(w, ctx, http.StatusCreated, imp)
}

// RecordEngagement handles POST /engagements.
// The engagement type must be one of like, repost, reply, or share.
func (h *EventHandlers) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RecordEngagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	middleware.UpdateResponseContext(w, ctx)

	eng, err := h.engine.RecordEngagement(ctx, req.PostID, req.UserID, event.EngagementType(req.Type), req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrInvalidEngagementType):
			ctx = middleware.SetErrorCode(ctx, ErrCodeInvalidEngagementType)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidEngagementType, "Engagement type must be one of: like, repost, reply, share")
		case errors.Is(err, feed.ErrInvalidInput):
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "post_id and user_id are required")
		default:
			slog.ErrorContext(ctx, "failed to record engagement", "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record engagement")
		}
		return
	}

	if err := h.repo.IncrementEngagement(req.PostID, eng.Type); err != nil && !errors.Is(err, post.ErrPostNotFound) {
		slog.WarnContext(ctx, "failed to increment engagement counter", "post_id", req.PostID, "error", err)
	}

	writeJSON(w, ctx, http.StatusCreated, eng)
}
