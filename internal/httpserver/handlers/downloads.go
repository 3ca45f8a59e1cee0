package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/tracker"
)

type submitResponse struct {
	QueueID string `json:"queueId"`
}

type downloadsResponse struct {
	Items         []domain.Job      `json:"items"`
	ServiceStatus connection.Status `json:"serviceStatus"`
}

// SubmitDownload enqueues a track on the download service.
func SubmitDownload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tracker.SubmitRequest
		if err := decodeJSON(r, w, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		queueID, err := d.Tracker.Submit(r.Context(), req)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Debug("download submitted via api",
			logger.String("track_id", req.TrackID),
			logger.String("queue_id", queueID))
		writeJSON(w, http.StatusAccepted, submitResponse{QueueID: queueID})
	}
}

// ListDownloads returns the tracked jobs, newest first, with the service status.
func ListDownloads(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, downloadsResponse{
			Items:         d.Tracker.Snapshot(),
			ServiceStatus: d.Connection.State().Status,
		})
	}
}

// CancelDownload asks the service to drop a tracked job.
func CancelDownload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "trackId")
		if err := d.Tracker.Cancel(r.Context(), trackID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
