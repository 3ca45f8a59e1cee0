package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/settings"
)

func GetSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Settings.Get())
	}
}

// UpdateSettings applies a partial update. A host or port change triggers a
// connection re-check in the background.
func UpdateSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch settings.Patch
		if err := decodeJSON(r, w, &patch); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		next, err := d.Settings.Update(r.Context(), patch)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, next)
	}
}
