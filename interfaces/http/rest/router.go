package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/handlers"
	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/middleware"
)

// Services are the application services behind the API.
type Services struct {
	Notes    handlers.NoteService
	Links    handlers.LinkService
	Search   handlers.Searcher
	Graph    handlers.GraphService
	Sync     handlers.SyncService
	Indexing handlers.Reindexer
}

// Options configures the router's cross-cutting behaviour.
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Observer receives per-route request metrics when set.
	Observer middleware.HTTPObserver
}

// Router creates and configures the HTTP router
type Router struct {
	services Services
	opts     Options
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(services Services, opts Options, logger *zap.Logger) *Router {
	return &Router{services: services, opts: opts, logger: logger}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.opts.Observer))

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", middleware.UserIDHeader},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser())

		noteHandler := handlers.NewNoteHandler(rt.services.Notes, rt.services.Links, rt.logger)
		graphHandler := handlers.NewGraphHandler(rt.services.Graph, rt.logger)

		r.Post("/search", handlers.NewSearchHandler(rt.services.Search, rt.logger).Search)

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", noteHandler.CreateNote)
			r.Get("/", noteHandler.ListNotes)
			r.Get("/{noteID}", noteHandler.GetNote)
			r.Put("/{noteID}", noteHandler.UpdateNote)
			r.Delete("/{noteID}", noteHandler.DeleteNote)
			r.Post("/{noteID}/links", noteHandler.LinkNotes)
			r.Post("/{noteID}/links/suggest", noteHandler.SuggestLinks)
			r.Get("/{noteID}/graph", graphHandler.GetNodeGraph)
		})

		r.Route("/graph", func(r chi.Router) {
			r.Get("/", graphHandler.GetUserGraph)
			r.Get("/path", graphHandler.FindShortestPath)
			r.Post("/query", graphHandler.ExecuteGraphQuery)
		})

		syncHandler := handlers.NewSyncHandler(rt.services.Sync, rt.logger)
		r.Post("/sync", syncHandler.Sync)
		r.Post("/sync/conflicts/resolve", syncHandler.ResolveConflicts)

		r.Post("/index/rebuild", handlers.NewIndexHandler(rt.services.Indexing, rt.logger).Rebuild)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
