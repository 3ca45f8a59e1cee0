package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	Status      string `json:"status,omitempty"`
	URL         string `json:"url,omitempty"`
	LastChecked string `json:"last_checked,omitempty"`
	ActiveJobs  *int   `json:"active_jobs,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Connection.State()
		lastChecked := "never"
		if !state.LastCheckedAt.IsZero() {
			lastChecked = state.LastCheckedAt.Format("2006-01-02 15:04:05")
		}
		active := d.Tracker.Active()

		components := map[string]componentStatus{
			"service": {
				OK:          state.Connected(),
				Status:      state.Status.String(),
				URL:         state.BaseURL,
				LastChecked: lastChecked,
			},
			"tracker": {
				OK:         true,
				ActiveJobs: &active,
			},
			"redis":   checkStore(r.Context(), d.Redis, "job-restore-disabled"),
			"history": checkHistory(r.Context(), d.History),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// No download service = nothing can be submitted
	if service, exists := components["service"]; exists && !service.OK {
		return "offline"
	}

	// Optional stores down = degraded
	for _, name := range []string{"redis", "history"} {
		if c, exists := components[name]; exists && !c.OK && c.Mode != "disabled" {
			return "degraded"
		}
	}

	return "optimal"
}

func checkStore(ctx context.Context, p deps.Pinger, impact string) componentStatus {
	if p == nil {
		return componentStatus{OK: false, Mode: "disabled", Impact: impact}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Impact: impact, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func checkHistory(ctx context.Context, h deps.History) componentStatus {
	if h == nil {
		return componentStatus{OK: false, Mode: "disabled", Impact: "history-disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.Accessible(ctx); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Impact: "history-not-recorded", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}
