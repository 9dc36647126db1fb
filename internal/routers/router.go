package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"roomsync/internal/api"
	"roomsync/internal/metrics"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(metrics.Middleware)

	r.Get("/api/v1/healthz", h.Health)

	r.Post("/api/v1/rooms", h.CreateRoom)
	r.Get("/api/v1/rooms/{id}", h.GetRoom)
	r.Delete("/api/v1/rooms/{id}", h.CloseRoom)
	r.Get("/api/v1/rooms/{id}/files", h.ListFiles)
	r.Put("/api/v1/files/{id}", h.SaveFile)

	r.Get("/ws/room", h.CollabWS)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
