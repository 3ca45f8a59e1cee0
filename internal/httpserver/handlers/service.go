package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
)

// ServiceState returns the current connection snapshot without probing.
func ServiceState(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Connection.State())
	}
}

// ServiceCheck runs a status check and returns its settled state.
func ServiceCheck(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Connection.CheckStatus(r.Context()))
	}
}
