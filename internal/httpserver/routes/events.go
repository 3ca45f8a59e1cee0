package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/handlers"
)

func init() { Register("events", registerEvents) }

// The event stream is long-lived, so it skips the API timeout.
func registerEvents(r chi.Router, d deps.Deps) {
	r.With(guard(d)...).Get("/api/events", handlers.Events(d))
}
