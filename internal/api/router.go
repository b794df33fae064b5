package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsenote/pulsenote/internal/middleware"
)

// RouterConfig holds the handler groups and metrics registry wired into the
// API router.
type RouterConfig struct {
	Events   *EventHandlers
	Feeds    *FeedHandlers
	Posts    *PostHandlers
	Health   *HealthHandlers
	Gatherer prometheus.Gatherer
}

// NewRouter builds the API's ServeMux. Middleware is applied by the caller.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/impressions", cfg.Events.RecordImpression)
	mux.HandleFunc("/engagements", cfg.Events.RecordEngagement)

	mux.HandleFunc("/trending", cfg.Feeds.Trending)
	mux.HandleFunc("/feed/cache", cfg.Feeds.ClearAllCaches)
	mux.HandleFunc("/users/", cfg.Feeds.ServeUser)

	mux.HandleFunc("/posts", cfg.Posts.ServeCollection)
	mux.HandleFunc("/posts/", cfg.Posts.ServeItem)

	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)

	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Root endpoint reports the service identity; everything unmatched is a 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"pulsenote-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}
