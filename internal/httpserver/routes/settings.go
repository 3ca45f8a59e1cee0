package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/handlers"
)

func init() { Register("settings", registerSettings) }

func registerSettings(r chi.Router, d deps.Deps) {
	g := r.With(api(d)...)
	g.Get("/api/settings", handlers.GetSettings(d))
	g.Put("/api/settings", handlers.UpdateSettings(d))
}
