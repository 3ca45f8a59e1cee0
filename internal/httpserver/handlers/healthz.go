package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Service       string  `json:"service,omitempty"`
	ActiveJobs    int     `json:"active_jobs"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz reports liveness of the bridge itself. It stays 200 while the
// download service is offline; readiness is /readyz.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: now().Sub(start).Seconds(),
		}
		if d.Connection != nil {
			resp.Service = d.Connection.State().Status.String()
		}
		if d.Tracker != nil {
			resp.ActiveJobs = d.Tracker.Active()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
