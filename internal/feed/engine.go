// Package feed implements the PulseNote feed ranking engine: it owns
// per-user impression and engagement history, scores candidate posts,
// and serves ranked feeds with per-user caching plus trending and
// recommendation variants.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsenote/pulsenote/internal/event"
	"github.com/pulsenote/pulsenote/internal/post"
	"github.com/pulsenote/pulsenote/internal/ranking"
)

// Common errors for engine operations. These are the only errors the
// engine surfaces to callers; persistence failures are swallowed by
// contract.
var (
	ErrInvalidInput          = errors.New("post ID and user ID are required")
	ErrInvalidEngagementType = errors.New("invalid engagement type")
)

// DefaultMaxFeedSize caps the number of posts in a generated feed.
const DefaultMaxFeedSize = 50

// DefaultVariantLimit is the default result count for trending and
// recommendation queries.
const DefaultVariantLimit = 10

// Preferences tune a single feed generation request.
type Preferences struct {
	// BoostRecent multiplies each composite score by the recent-boost
	// factor, favoring fresher posts.
	BoostRecent bool `json:"boost_recent"`
}

// Config holds engine tuning knobs. Zero values fall back to defaults.
type Config struct {
	// MaxFeedSize caps generated feed length (default 50).
	MaxFeedSize int

	// CacheTTL is how long a cached feed stays valid (default 1h).
	CacheTTL time.Duration

	// HistoryMaxPerUser caps each user's in-memory impression and
	// engagement lists, trimming oldest entries when exceeded.
	// Zero disables trimming, matching the unbounded upstream behavior.
	HistoryMaxPerUser int
}

// Engine is the feed ranking engine. It exclusively owns its in-memory
// impression/engagement maps and feed cache for its lifetime; no external
// actor mutates them directly.
//
// All map access is guarded by a single RWMutex: record operations take
// the write lock, scoring and statistics take the read lock. There is no
// ordering guarantee between a record call and a concurrently racing
// feed generation for the same user beyond last-write-wins.
type Engine struct {
	cfg     Config
	weights *ranking.Weights
	cache   Cache
	logger  *slog.Logger
	metrics *Metrics

	// dispatcher forwards records to the event sink off the critical
	// path; nil disables persistence entirely.
	dispatcher *event.Dispatcher

	// now is swappable for tests.
	now func() time.Time

	mu          sync.RWMutex
	impressions map[string][]event.Impression
	engagements map[string][]event.Engagement
}

// NewEngine creates a feed ranking engine.
// A nil cache falls back to an in-memory cache, a nil weights pointer to
// the default calibration, and a nil logger to slog.Default. dispatcher
// and metrics may be nil.
func NewEngine(cfg Config, weights *ranking.Weights, cache Cache, dispatcher *event.Dispatcher, logger *slog.Logger, metrics *Metrics) *Engine {
	if cfg.MaxFeedSize <= 0 {
		cfg.MaxFeedSize = DefaultMaxFeedSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:         cfg,
		weights:     weights,
		cache:       cache,
		logger:      logger,
		metrics:     metrics,
		dispatcher:  dispatcher,
		now:         time.Now,
		impressions: make(map[string][]event.Impression),
		engagements: make(map[string][]event.Engagement),
	}
}

// RecordImpression appends an impression to the user's history and
// forwards it to the event sink best-effort. The in-memory append always
// succeeds given valid inputs; sink failures never surface here.
func (e *Engine) RecordImpression(ctx context.Context, postID, userID string, meta *event.ImpressionMeta) (event.Impression, error) {
	if postID == "" || userID == "" {
		return event.Impression{}, fmt.Errorf("%w: post_id=%q user_id=%q", ErrInvalidInput, postID, userID)
	}

	if meta == nil {
		meta = &event.ImpressionMeta{}
	}
	device := meta.DeviceType
	if device == "" {
		device = event.DeviceUnknown
	}

	imp := event.Impression{
		ID:             uuid.New().String(),
		PostID:         postID,
		UserID:         userID,
		Timestamp:      e.now(),
		ViewDurationMs: meta.ViewDurationMs,
		ScrollDepth:    meta.ScrollDepth,
		InViewport:     meta.InViewport,
		DeviceType:     device,
	}

	e.mu.Lock()
	e.impressions[userID] = appendBounded(e.impressions[userID], imp, e.cfg.HistoryMaxPerUser)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.impressionsRecorded.Inc()
	}
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(imp)
	}
	return imp, nil
}

// RecordEngagement appends an engagement to the user's history and
// forwards it to the event sink best-effort. Unknown engagement types are
// rejected with ErrInvalidEngagementType.
func (e *Engine) RecordEngagement(ctx context.Context, postID, userID string, typ event.EngagementType, metadata map[string]string) (event.Engagement, error) {
	if postID == "" || userID == "" {
		return event.Engagement{}, fmt.Errorf("%w: post_id=%q user_id=%q", ErrInvalidInput, postID, userID)
	}
	if !typ.Valid() {
		return event.Engagement{}, fmt.Errorf("%w: %q", ErrInvalidEngagementType, typ)
	}

	eng := event.Engagement{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    userID,
		Type:      typ,
		Timestamp: e.now(),
		Metadata:  metadata,
	}

	e.mu.Lock()
	e.engagements[userID] = appendBounded(e.engagements[userID], eng, e.cfg.HistoryMaxPerUser)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.engagementsRecorded.WithLabelValues(string(typ)).Inc()
	}
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(eng)
	}
	return eng, nil
}

// Score computes the composite feed score for a single post as seen by
// the given user.
func (e *Engine) Score(p *post.Post, userID string, prefs Preferences) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scoreLocked(p, userID, prefs, e.now())
}

// scoreLocked computes a composite score. Callers must hold at least the
// read lock.
func (e *Engine) scoreLocked(p *post.Post, userID string, prefs Preferences, now time.Time) float64 {
	params := ranking.ScoreParams{
		Engagement: ranking.EngagementScore(p.Engagement.Likes, p.Engagement.Reposts, p.Engagement.Replies),
		Recency:    ranking.RecencyScore(p.CreatedAt, now),
		Diversity:  ranking.DiversityScore(e.authorEngagementsLocked(userID, p.AuthorID)),
		// Computed but weighted at zero under the default calibration;
		// kept in the formula for observability and future tuning.
		Impression:  ranking.ImpressionScore(p.ImpressionCount),
		BoostRecent: prefs.BoostRecent,
	}
	return ranking.CompositeScore(params, e.weights)
}

// authorEngagementsLocked counts the user's past engagements with posts
// by the given author. Author identity is embedded as a prefix of post
// IDs, so the check is a prefix match on the engaged post ID.
func (e *Engine) authorEngagementsLocked(userID, authorID string) int {
	if authorID == "" {
		return 0
	}
	count := 0
	for _, eng := range e.engagements[userID] {
		if strings.HasPrefix(eng.PostID, authorID) {
			count++
		}
	}
	return count
}

// GenerateFeed returns the ranked, size-capped feed for a user.
//
// A non-expired cache entry is returned verbatim, including when the
// caller passes different preferences than the original computation —
// an accepted staleness trade-off favoring response time. On a miss,
// every candidate is scored, sorted by score descending with post ID
// ascending as the deterministic tie-break, truncated to MaxFeedSize,
// and cached.
func (e *Engine) GenerateFeed(ctx context.Context, posts []*post.Post, userID string, prefs Preferences) []ScoredPost {
	now := e.now()

	if entry, ok := e.cache.Get(ctx, userID); ok && now.Sub(entry.CachedAt) < e.cfg.CacheTTL {
		if e.metrics != nil {
			e.metrics.cacheHits.Inc()
		}
		return entry.Posts
	}
	if e.metrics != nil {
		e.metrics.cacheMisses.Inc()
	}

	start := time.Now()
	ranked := e.rankPosts(posts, userID, prefs, now)
	if len(ranked) > e.cfg.MaxFeedSize {
		ranked = ranked[:e.cfg.MaxFeedSize]
	}

	e.cache.Set(ctx, userID, CacheEntry{Posts: ranked, CachedAt: now}, e.cfg.CacheTTL)

	if e.metrics != nil {
		e.metrics.generationDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Debug("feed generated",
		slog.String("user_id", userID),
		slog.Int("candidates", len(posts)),
		slog.Int("ranked", len(ranked)))

	return ranked
}

// rankPosts scores and sorts candidates descending with post ID ascending
// as tie-break.
func (e *Engine) rankPosts(posts []*post.Post, userID string, prefs Preferences, now time.Time) []ScoredPost {
	e.mu.RLock()
	ranked := make([]ScoredPost, 0, len(posts))
	for _, p := range posts {
		ranked = append(ranked, ScoredPost{
			Post:  *p,
			Score: e.scoreLocked(p, userID, prefs, now),
		})
	}
	e.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Post.ID < ranked[j].Post.ID
	})
	return ranked
}

// TrendingPosts returns posts ranked by engagement velocity on a short
// decay window. Results are never cached.
func (e *Engine) TrendingPosts(posts []*post.Post, limit int) []ScoredPost {
	if limit <= 0 {
		limit = DefaultVariantLimit
	}
	now := e.now()

	ranked := make([]ScoredPost, 0, len(posts))
	for _, p := range posts {
		ranked = append(ranked, ScoredPost{
			Post:  *p,
			Score: ranking.TrendScore(p.Engagement.Likes, p.ImpressionCount, p.CreatedAt, now),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Post.ID < ranked[j].Post.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RecommendedPosts returns personalized recommendations for a user.
//
// Users with no engagement history fall back to TrendingPosts (cold
// start). Otherwise candidates the user already engaged with are
// excluded, as are posts by the author of the user's single most recent
// engagement — a deliberately naive "don't repeat the last author" rule.
func (e *Engine) RecommendedPosts(posts []*post.Post, userID string, limit int) []ScoredPost {
	if limit <= 0 {
		limit = DefaultVariantLimit
	}

	e.mu.RLock()
	history := e.engagements[userID]
	if len(history) == 0 {
		e.mu.RUnlock()
		return e.TrendingPosts(posts, limit)
	}

	engaged := make(map[string]struct{}, len(history))
	for _, eng := range history {
		engaged[eng.PostID] = struct{}{}
	}
	// Author identity is a post-ID prefix, so the last engaged post's ID
	// doubles as the author exclusion key.
	lastEngagedPostID := history[len(history)-1].PostID

	now := e.now()
	ranked := make([]ScoredPost, 0, len(posts))
	for _, p := range posts {
		if _, ok := engaged[p.ID]; ok {
			continue
		}
		if p.AuthorID != "" && strings.HasPrefix(lastEngagedPostID, p.AuthorID) {
			continue
		}
		ranked = append(ranked, ScoredPost{
			Post:  *p,
			Score: e.scoreLocked(p, userID, Preferences{}, now),
		})
	}
	e.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Post.ID < ranked[j].Post.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Popularity classifies a post by its engagement-per-impression rate.
// Pure function of the post's counters.
func (e *Engine) Popularity(p *post.Post) ranking.Popularity {
	return ranking.PopularityTier(p.Engagement.Likes, p.Engagement.Reposts, p.Engagement.Replies, p.ImpressionCount)
}

// ClearCache invalidates one user's cached feed.
func (e *Engine) ClearCache(ctx context.Context, userID string) {
	e.cache.Delete(ctx, userID)
}

// ClearAllCaches invalidates every cached feed.
func (e *Engine) ClearAllCaches(ctx context.Context) {
	e.cache.Clear(ctx)
}

// appendBounded appends to a history slice, trimming the oldest entries
// when max > 0 and the bound is exceeded.
func appendBounded[T any](list []T, item T, max int) []T {
	list = append(list, item)
	if max > 0 && len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}
