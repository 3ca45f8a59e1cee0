package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/handlers"
)

func init() { Register("service", registerService) }

func registerService(r chi.Router, d deps.Deps) {
	g := r.With(api(d)...)
	g.Get("/api/service", handlers.ServiceState(d))
	g.Post("/api/service/check", handlers.ServiceCheck(d))
	g.Get("/api/infra", handlers.Infra(d))
}
