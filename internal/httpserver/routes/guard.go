package routes

import (
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/mw"
)

// apiTimeout bounds non-streaming API calls. A submission may wait for a
// status check plus the enqueue request.
const apiTimeout = 25 * time.Second

// guard returns the access checks shared by every API route.
func guard(d deps.Deps) []Middleware {
	return []Middleware{
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	}
}

// api is guard plus the request timeout.
func api(d deps.Deps) []Middleware {
	return append(guard(d), middleware.Timeout(apiTimeout))
}
