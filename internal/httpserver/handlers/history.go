package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type historyResponse struct {
	Items []domain.Job `json:"items"`
}

// History lists archived finished jobs, most recent first.
func History(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.History == nil {
			writeError(w, d.Logger, fmt.Errorf("%w: history archive disabled", domain.ErrNotFound))
			return
		}

		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, d.Logger, fmt.Errorf("%w: invalid limit %q", domain.ErrInvalidRequest, v))
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		items, err := d.History.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if items == nil {
			items = []domain.Job{}
		}
		writeJSON(w, http.StatusOK, historyResponse{Items: items})
	}
}
