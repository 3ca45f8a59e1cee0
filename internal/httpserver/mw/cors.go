package mw

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows browser pages served from the given origins to call the API.
// "*" allows any origin. Browser extension origins (chrome-extension://,
// moz-extension://) are matched like any other origin. With an empty list no
// CORS headers are sent, so only same-origin and non-browser clients work.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		// Origins never carry a path; "https://site/" from a config file means "https://site".
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         600,
	})
}
