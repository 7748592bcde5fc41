package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/promptlibrary/internal/api/handlers"
	"github.com/nikhilbhutani/promptlibrary/internal/api/middleware"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/library"
)

// Deps are the services the HTTP layer is built on. Queue, Models and
// Checks are optional.
type Deps struct {
	Library *library.Library
	Queue   handlers.Enqueuer
	Models  handlers.ModelLister
	Checks  map[string]handlers.Check
}

type Router struct {
	mux     *chi.Mux
	cfg     config.ServerConfig
	deps    Deps
	limiter *middleware.RateLimiter
}

func NewRouter(cfg config.ServerConfig, deps Deps) *Router {
	rt := &Router{mux: chi.NewRouter(), cfg: cfg, deps: deps}
	if cfg.RateLimit > 0 {
		rt.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return rt
}

// Limiter returns the rate limiter, nil when rate limiting is off.
func (rt *Router) Limiter() *middleware.RateLimiter {
	return rt.limiter
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORSOrigin))
	if rt.limiter != nil {
		r.Use(rt.limiter.Limit)
	}

	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	promptH := handlers.NewPromptHandler(rt.deps.Library)
	runH := handlers.NewRunHandler(rt.deps.Library, rt.deps.Queue)
	collectionH := handlers.NewCollectionHandler(rt.deps.Library, rt.deps.Models)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", promptH.List)
			r.Post("/", promptH.Create)
			r.Get("/{id}", promptH.Get)
			r.Put("/{id}", promptH.Update)
			r.Delete("/{id}", promptH.Delete)
			r.Put("/{id}/versions/active", promptH.SetActiveVersion)
			r.Get("/{id}/compare", promptH.Compare)
			r.Get("/{id}/share", promptH.Share)
			r.Post("/{id}/enhance", promptH.Enhance)
			r.Post("/{id}/runs", runH.Run)
			r.Post("/{id}/results/{resultID}/evaluate", runH.Evaluate)
		})

		r.Post("/categorize", collectionH.Categorize)
		r.Get("/stats", collectionH.Stats)
		r.Post("/import", collectionH.Import)
		r.Get("/export", collectionH.Export)
		r.Get("/models", collectionH.Models)
	})

	return r
}
