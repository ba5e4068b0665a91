package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/api/middleware"
	"github.com/franzhentze92/druma-chat/internal/chat"
	"github.com/franzhentze92/druma-chat/internal/feed"
	"github.com/franzhentze92/druma-chat/internal/handlers"
	"github.com/franzhentze92/druma-chat/internal/identity"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, db store.DataStore, redisStore *store.RedisStore, pushFeed feed.Feed) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the web client (catalog and shelter dashboard) runs on its
	// own origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Druma-User"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	resolver := chat.NewResolver(db, identity.NewStoreSource(db), redisStore, logger)
	h := handlers.NewHandler(db, redisStore, pushFeed, resolver, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.CreateApplication)
		r.Get("/{id}", h.GetApplication)
		r.Post("/{id}/status", h.UpdateApplicationStatus)
	})

	r.Post("/chat/{applicationID}", h.OpenChat)

	r.Route("/room/{id}", func(r chi.Router) {
		r.Get("/messages", h.GetRoomMessages)
		r.Post("/messages", h.PostMessage)
		r.Post("/read", h.MarkRead)
		r.Get("/ws", h.StreamRoom)
	})

	return r
}
