package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/middleware"
	"github.com/pulsenote/pulsenote/internal/post"
)

// FeedHandlers holds dependencies for feed, trending, and recommendation
// HTTP handlers.
type FeedHandlers struct {
	engine *feed.Engine
	repo   post.Repository
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(engine *feed.Engine, repo post.Repository) *FeedHandlers {
	return &FeedHandlers{
		engine: engine,
		repo:   repo,
	}
}

// FeedResponse represents a ranked feed returned to a client.
type FeedResponse struct {
	UserID string            `json:"user_id,omitempty"`
	Posts  []feed.ScoredPost `json:"posts"`
}

// extractUserID extracts the user ID from a /users/{id}/... path.
// Returns the user ID, the remainder of the path after the ID, and an error
// if the ID is missing.
func extractUserID(r *http.Request) (string, string, error) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("user ID is required")
	}
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	return parts[0], rest, nil
}

// parseLimit parses an optional ?limit= query parameter.
// Returns defaultLimit when the parameter is absent or invalid.
func parseLimit(r *http.Request, defaultLimit int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return n
}

// ServeUser dispatches /users/{id}/... requests to the matching handler.
func (h *FeedHandlers) ServeUser(w http.ResponseWriter, r *http.Request) {
	userID, rest, err := extractUserID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "User ID is required")
		return
	}

	ctx := middleware.SetUserID(r.Context(), userID)
	middleware.UpdateResponseContext(w, ctx)
	r = r.WithContext(ctx)

	switch {
	case rest == "feed" && r.Method == http.MethodGet:
		h.getFeed(w, r, userID)
	case rest == "feed/cache" && r.Method == http.MethodDelete:
		h.clearUserCache(w, r, userID)
	case rest == "recommended" && r.Method == http.MethodGet:
		h.getRecommended(w, r, userID)
	case rest == "stats" && r.Method == http.MethodGet:
		h.getStats(w, r, userID)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// getFeed handles GET /users/{id}/feed.
// Supports ?boost_recent=true to favor fresher posts. A cached feed within
// TTL is returned as-is regardless of the preference flags on the request.
func (h *FeedHandlers) getFeed(w http.ResponseWriter, r *http.Request, userID string) {
	posts, err := h.repo.List()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list posts", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate feed")
		return
	}

	prefs := feed.Preferences{
		BoostRecent: r.URL.Query().Get("boost_recent") == "true",
	}

	ranked := h.engine.GenerateFeed(r.Context(), posts, userID, prefs)
	writeJSON(w, r.Context(), http.StatusOK, FeedResponse{UserID: userID, Posts: ranked})
}

// getRecommended handles GET /users/{id}/recommended.
// Users with no engagement history fall back to trending posts.
func (h *FeedHandlers) getRecommended(w http.ResponseWriter, r *http.Request, userID string) {
	posts, err := h.repo.List()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list posts", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate recommendations")
		return
	}

	limit := parseLimit(r, feed.DefaultVariantLimit)
	ranked := h.engine.RecommendedPosts(posts, userID, limit)
	writeJSON(w, r.Context(), http.StatusOK, FeedResponse{UserID: userID, Posts: ranked})
}

// getStats handles GET /users/{id}/stats.
func (h *FeedHandlers) getStats(w http.ResponseWriter, r *http.Request, userID string) {
	stats := h.engine.Statistics(userID)
	writeJSON(w, r.Context(), http.StatusOK, stats)
}

// clearUserCache handles DELETE /users/{id}/feed/cache.
func (h *FeedHandlers) clearUserCache(w http.ResponseWriter, r *http.Request, userID string) {
	h.engine.ClearCache(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

// Trending handles GET /trending.
// Trending is computed fresh on every request and never cached.
func (h *FeedHandlers) Trending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	posts, err := h.repo.List()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list posts", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute trending posts")
		return
	}

	limit := parseLimit(r, feed.DefaultVariantLimit)
	ranked := h.engine.TrendingPosts(posts, limit)
	writeJSON(w, r.Context(), http.StatusOK, FeedResponse{Posts: ranked})
}

// ClearAllCaches handles DELETE /feed/cache.
func (h *FeedHandlers) ClearAllCaches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	h.engine.ClearAllCaches(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
