package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"replay-vision/internal/config"
	"replay-vision/internal/record"
	"replay-vision/internal/replay"
	"replay-vision/internal/vision"
)

// SamplerInterface defines the sampler methods used by the API.
// It lets handler tests run against a mock instead of a live replay.
type SamplerInterface interface {
	// Process ingests one frame and returns the samples it produced
	Process(ctx context.Context, f *replay.Frame) ([]replay.Sample, error)
	// Latest returns the most recent sample of an owner
	Latest(owner vision.OwnerID) (replay.Sample, bool)
	// LatestAll returns the latest sample of every owner
	LatestAll() []replay.Sample
	// Stats returns sampler counters
	Stats() replay.Stats
	// Config returns the sampling configuration (tile size for one-shot estimates)
	Config() replay.Config
}

// RecordLogInterface exposes record log counters.
type RecordLogInterface interface {
	Stats() record.LogStats
}

// HistoryStore serves stored vision samples.
type HistoryStore interface {
	ListVision(replay, ownerID string) ([]*record.VisionSample, error)
}

// RouterConfig contains the dependencies of the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Sampler:         mockSampler,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	    DisableLogging:  true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Sampler is the vision sampler (required)
	Sampler SamplerInterface

	// Records is the record log; nil omits record stats
	Records RecordLogInterface

	// History is the SQLite store; nil disables the history endpoint
	History HistoryStore

	// Overlay configures rendered diagnostics; zero value uses defaults
	Overlay config.OverlayConfig

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, one is created from RateLimitConfig (or DefaultRateLimitConfig).
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// Origins controls CORS; nil allows localhost only
	Origins *OriginPolicy

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	sampler SamplerInterface
	records RecordLogInterface
	history HistoryStore
	overlay config.OverlayConfig
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It starts no goroutines other than the rate limiter's eviction loop when it
// creates its own limiter; pass RateLimiter to control that lifecycle.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.Origins
	if origins == nil {
		origins = NewOriginPolicy(nil)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins.Origins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	overlayCfg := cfg.Overlay
	if overlayCfg.TilePixels <= 0 {
		overlayCfg = config.DefaultOverlay()
	}

	h := &routerHandlers{
		sampler: cfg.Sampler,
		records: cfg.Records,
		history: cfg.History,
		overlay: overlayCfg,
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/estimate", h.handleEstimate)
		r.Post("/frames", h.handleIngestFrame)

		r.Get("/owners", h.handleListOwners)
		r.Get("/owners/{owner}", h.handleGetOwner)
		r.Get("/owners/{owner}/overlay.png", h.handleOwnerOverlay)
		r.Get("/owners/{owner}/history", h.handleOwnerHistory)

		r.Get("/stats", h.handleGetStats)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
