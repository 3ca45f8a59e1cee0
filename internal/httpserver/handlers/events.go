package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

// keepAlive is the interval of SSE comment lines that keep idle proxies from
// closing the stream.
const keepAlive = 15 * time.Second

// Events streams published events as server-sent events. The first message is
// a connectionChanged snapshot so late subscribers start from the current state.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// the stream outlives the server write timeout
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			d.Logger.Debug("cannot clear write deadline", logger.Error(err))
		}

		ch, unsubscribe := d.Events.Subscribe()
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		state := d.Connection.State()
		hello := map[string]any{"type": "connectionChanged", "status": state.Status, "url": state.BaseURL}
		if err := writeEvent(w, "connectionChanged", "", hello); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			d.Logger.Warn("event stream not flushable", logger.Error(err))
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := writeEvent(w, string(e.Type), e.ID, e); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
