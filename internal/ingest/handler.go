package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pulsenote/pulsenote/internal/event"
	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/post"
)

// Handler decodes firehose envelopes and feeds them into the engine.
// Undecodable or invalid messages are counted and skipped; they never
// tear down the connection.
type Handler struct {
	engine  *feed.Engine
	repo    post.Repository
	metrics *Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics and logger may be nil.
func NewHandler(engine *feed.Engine, repo post.Repository, metrics *Metrics, logger *slog.Logger) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:  engine,
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle implements MessageHandler. It always returns nil so a bad
// message stream degrades to skipped messages rather than reconnect churn.
func (h *Handler) Handle(messageType int, payload []byte) error {
	start := time.Now()

	env, err := DecodeEnvelope(messageType, payload)
	if err != nil {
		h.metrics.IncMessagesSkipped()
		h.logger.Warn("skipping undecodable firehose message", slog.String("error", err.Error()))
		return nil
	}

	ctx := context.Background()

	switch env.Kind {
	case "impression":
		meta := &event.ImpressionMeta{
			ViewDurationMs: env.ViewDurationMs,
			ScrollDepth:    env.ScrollDepth,
			InViewport:     env.InViewport,
			DeviceType:     event.DeviceType(env.DeviceType),
		}
		if _, err := h.engine.RecordImpression(ctx, env.PostID, env.UserID, meta); err != nil {
			h.metrics.IncMessagesError()
			h.logger.Warn("failed to record firehose impression",
				slog.String("post_id", env.PostID), slog.String("error", err.Error()))
			return nil
		}
		h.bumpImpression(env.PostID)

	case "engagement":
		eng, err := h.engine.RecordEngagement(ctx, env.PostID, env.UserID, event.EngagementType(env.Type), env.Metadata)
		if err != nil {
			h.metrics.IncMessagesError()
			h.logger.Warn("failed to record firehose engagement",
				slog.String("post_id", env.PostID), slog.String("type", env.Type), slog.String("error", err.Error()))
			return nil
		}
		h.bumpEngagement(env.PostID, eng.Type)
	}

	h.metrics.IncMessagesProcessed(env.Kind)
	h.metrics.ObserveIngestLatency(time.Since(start).Seconds())
	return nil
}

// bumpImpression bumps the repository counter, tolerating unknown posts.
func (h *Handler) bumpImpression(postID string) {
	if h.repo == nil {
		return
	}
	if err := h.repo.IncrementImpressions(postID); err != nil && !errors.Is(err, post.ErrPostNotFound) {
		h.logger.Warn("failed to increment impression counter", slog.String("post_id", postID), slog.String("error", err.Error()))
	}
}

// bumpEngagement bumps the repository counter, tolerating unknown posts.
func (h *Handler) bumpEngagement(postID string, typ event.EngagementType) {
	if h.repo == nil {
		return
	}
	if err := h.repo.IncrementEngagement(postID, typ); err != nil && !errors.Is(err, post.ErrPostNotFound) {
		h.logger.Warn("failed to increment engagement counter", slog.String("post_id", postID), slog.String("error", err.Error()))
	}
}
