package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool   `json:"ready"`
	Service string `json:"service"`
}

// Readyz reports the daemon as ready once wired; the download service state is
// informational since jobs can be submitted again as soon as it comes back.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{Ready: d.Tracker != nil && d.Connection != nil}
		if d.Connection != nil {
			resp.Service = d.Connection.State().Status.String()
		}
		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
