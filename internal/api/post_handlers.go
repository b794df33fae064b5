package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/middleware"
	"github.com/pulsenote/pulsenote/internal/post"
	"github.com/pulsenote/pulsenote/internal/ranking"
)

// MaxPostContentLength caps post content size.
const MaxPostContentLength = 5000

// CreatePostRequest represents the request body for creating a post.
type CreatePostRequest struct {
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

// PopularityResponse represents the popularity classification of a post.
type PopularityResponse struct {
	PostID     string  `json:"post_id"`
	Popularity string  `json:"popularity"`
	Rate       float64 `json:"engagement_rate"`
}

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	engine *feed.Engine
	repo   post.Repository
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(engine *feed.Engine, repo post.Repository) *PostHandlers {
	return &PostHandlers{
		engine: engine,
		repo:   repo,
	}
}

// validatePostContent validates post content.
// Returns error message if validation fails, empty string if valid.
func validatePostContent(content string) string {
	trimmed := strings.TrimSpace(content)

	if trimmed == "" {
		return "post content is required"
	}
	if len(trimmed) > MaxPostContentLength {
		return "post content must not exceed 5000 characters"
	}
	return ""
}

// sanitizePostContent sanitizes post content to prevent XSS attacks.
// Should be called after validation passes.
func sanitizePostContent(content string) string {
	return html.EscapeString(strings.TrimSpace(content))
}

// extractPostID extracts the post ID from a /posts/{id}/... path.
// Returns the post ID, the remainder of the path, and an error if the ID is missing.
func extractPostID(r *http.Request) (string, string, error) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/posts/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("post ID is required")
	}
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	return parts[0], rest, nil
}

// ServeCollection dispatches /posts requests.
func (h *PostHandlers) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createPost(w, r)
	case http.MethodGet:
		h.listPosts(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// ServeItem dispatches /posts/{id}/... requests.
func (h *PostHandlers) ServeItem(w http.ResponseWriter, r *http.Request) {
	postID, rest, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Post ID is required")
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.getPost(w, r, postID)
	case rest == "popularity" && r.Method == http.MethodGet:
		h.getPopularity(w, r, postID)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// createPost handles POST /posts.
func (h *PostHandlers) createPost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.AuthorID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "author_id is required")
		return
	}
	if errMsg := validatePostContent(req.Content); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	newPost := &post.Post{
		AuthorID: strings.TrimSpace(req.AuthorID),
		Content:  sanitizePostContent(req.Content),
	}

	if err := h.repo.Create(newPost); err != nil {
		if errors.Is(err, post.ErrEmptyAuthor) || errors.Is(err, post.ErrEmptyContent) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "failed to create post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create post")
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, newPost)
}

// listPosts handles GET /posts.
func (h *PostHandlers) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.List()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list posts", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list posts")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, posts)
}

// getPost handles GET /posts/{id}.
func (h *PostHandlers) getPost(w http.ResponseWriter, r *http.Request, postID string) {
	p, err := h.repo.GetByID(postID)
	if err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to get post")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, p)
}

// getPopularity handles GET /posts/{id}/popularity.
func (h *PostHandlers) getPopularity(w http.ResponseWriter, r *http.Request, postID string) {
	p, err := h.repo.GetByID(postID)
	if err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to get post")
		return
	}

	resp := PopularityResponse{
		PostID:     p.ID,
		Popularity: string(h.engine.Popularity(p)),
		Rate:       ranking.EngagementRate(p.Engagement.Likes, p.Engagement.Reposts, p.Engagement.Replies, p.ImpressionCount),
	}
	writeJSON(w, r.Context(), http.StatusOK, resp)
}
