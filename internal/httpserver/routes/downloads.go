package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/mw"
)

func init() { Register("downloads", registerDownloads) }

func registerDownloads(r chi.Router, d deps.Deps) {
	g := r.With(api(d)...)
	g.Get("/api/downloads", handlers.ListDownloads(d))
	g.Delete("/api/downloads/{trackId}", handlers.CancelDownload(d))
	g.Get("/api/history", handlers.History(d))

	submit := g
	if d.SubmitRate > 0 {
		submit = g.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:        d.SubmitRate,
			RefillPerMin: d.SubmitRate,
			MaxEntries:   256,
			TrustProxy:   d.TrustProxy,
		}))
	}
	submit.Post("/api/downloads", handlers.SubmitDownload(d))
}
