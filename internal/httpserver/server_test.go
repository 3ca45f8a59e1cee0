package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"github.com/MrSnakeDoc/dlbridge/internal/config"
	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/history"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/settings"
)

type testEnv struct {
	handler  http.Handler
	conn     *fakeConnection
	tracker  *fakeTracker
	settings *settings.Service
	hub      *events.Hub
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *deps.Deps)) *testEnv {
	t.Helper()
	log := logger.Nop()

	env := &testEnv{
		conn: &fakeConnection{state: connection.State{
			Status:  connection.Connected,
			BaseURL: "http://localhost:1337",
		}},
		tracker: &fakeTracker{},
		hub:     events.NewHub(16, log),
	}
	env.settings = settings.NewService(&settings.MemoryStore{}, settings.Defaults(), env.hub, log)

	cfg := &config.Config{ListenAddr: "127.0.0.1:0"}
	d := deps.Deps{
		Logger:     log,
		StartTime:  time.Now(),
		Version:    "test",
		Connection: env.conn,
		Tracker:    env.tracker,
		Settings:   env.settings,
		Events:     env.hub,
	}
	if mutate != nil {
		mutate(cfg, &d)
	}
	env.handler = New(cfg, log, d).Handler()
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["ready"] != true || body["service"] != "connected" {
		t.Errorf("body = %v", body)
	}
}

func TestServiceEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/service", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	state := decode[connection.State](t, rec)
	if state.Status != connection.Connected || state.BaseURL != "http://localhost:1337" {
		t.Errorf("state = %+v", state)
	}

	rec = env.do(http.MethodPost, "/api/service/check", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d", rec.Code)
	}
	if env.conn.checks != 1 {
		t.Errorf("checks = %d, want 1", env.conn.checks)
	}
}

func TestSubmitDownload(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/downloads", `{"trackId":"123","quality":"mp3","metadata":{"title":"Song"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if body["queueId"] != "q-123" {
		t.Errorf("queueId = %q", body["queueId"])
	}
	if len(env.tracker.submitted) != 1 {
		t.Fatalf("submitted = %d", len(env.tracker.submitted))
	}
	got := env.tracker.submitted[0]
	if got.TrackID != "123" || got.Quality != "mp3" || got.Metadata["title"] != "Song" {
		t.Errorf("submitted = %+v", got)
	}
}

func TestSubmitDownloadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed body", `{"trackId":`, nil, http.StatusBadRequest},
		{"invalid request", `{"trackId":""}`, domain.ErrInvalidRequest, http.StatusBadRequest},
		{"not connected", `{"trackId":"1"}`, domain.ErrNotConnected, http.StatusServiceUnavailable},
		{"already tracked", `{"trackId":"1"}`, fmt.Errorf("%w: 1", domain.ErrAlreadyTracked), http.StatusConflict},
		{"rejected", `{"trackId":"1"}`, domain.ErrRemoteRejected, http.StatusBadGateway},
		{"unexpected", `{"trackId":"1"}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.tracker.submitErr = tt.err

			rec := env.do(http.MethodPost, "/api/downloads", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if body := decode[map[string]string](t, rec); body["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestSubmitRateLimited(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *deps.Deps) { d.SubmitRate = 2 })

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/api/downloads", fmt.Sprintf(`{"trackId":"%d"}`, i))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("submission %d status = %d", i, rec.Code)
		}
	}
	rec := env.do(http.MethodPost, "/api/downloads", `{"trackId":"x"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	// listing is not limited
	if rec := env.do(http.MethodGet, "/api/downloads", ""); rec.Code != http.StatusOK {
		t.Errorf("list status = %d", rec.Code)
	}
}

func TestListDownloads(t *testing.T) {
	env := newTestEnv(t, nil)
	env.tracker.jobs = []domain.Job{
		{TrackID: "b", QueueID: "qb", Status: domain.JobDownloading, Progress: 40},
		{TrackID: "a", QueueID: "qa", Status: domain.JobCompleted, Progress: 100},
	}

	rec := env.do(http.MethodGet, "/api/downloads/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Items         []domain.Job `json:"items"`
		ServiceStatus string       `json:"serviceStatus"`
	}](t, rec)
	if len(body.Items) != 2 || body.Items[0].TrackID != "b" {
		t.Errorf("items = %+v", body.Items)
	}
	if body.ServiceStatus != "connected" {
		t.Errorf("serviceStatus = %q", body.ServiceStatus)
	}
}

func TestCancelDownload(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodDelete, "/api/downloads/123", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.tracker.cancelled) != 1 || env.tracker.cancelled[0] != "123" {
		t.Errorf("cancelled = %v", env.tracker.cancelled)
	}

	env.tracker.cancelErr = domain.ErrCancelUnsupported
	if rec := env.do(http.MethodDelete, "/api/downloads/123", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("unsupported status = %d, want 501", rec.Code)
	}
	env.tracker.cancelErr = domain.ErrNotFound
	if rec := env.do(http.MethodDelete, "/api/downloads/123", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	ch, unsubscribe := env.hub.Subscribe()
	defer unsubscribe()

	rec := env.do(http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if got := decode[settings.Settings](t, rec); got != settings.Defaults() {
		t.Errorf("settings = %+v", got)
	}

	rec = env.do(http.MethodPut, "/api/settings", `{"downloadQuality":"mp3","servicePort":8337}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[settings.Settings](t, rec)
	if got.DownloadQuality != "mp3" || got.ServicePort != 8337 || got.ServiceHost != "localhost" {
		t.Errorf("updated = %+v", got)
	}

	select {
	case e := <-ch:
		if e.Type != events.SettingsChanged {
			t.Errorf("event type = %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Error("no settingsChanged event")
	}

	rec = env.do(http.MethodPut, "/api/settings", `{"servicePort":70000}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid port status = %d, want 400", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(http.MethodGet, "/api/history", ""); rec.Code != http.StatusNotFound {
		t.Errorf("disabled history status = %d, want 404", rec.Code)
	}

	archive := history.New(memblob.OpenBucket(nil))
	defer archive.Close()
	job := domain.Job{TrackID: "1", QueueID: "q1", Status: domain.JobCompleted, FinishedAt: time.Now()}
	if err := archive.Archive(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	env = newTestEnv(t, func(_ *config.Config, d *deps.Deps) { d.History = archive })
	rec := env.do(http.MethodGet, "/api/history?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Items []domain.Job `json:"items"`
	}](t, rec)
	if len(body.Items) != 1 || body.Items[0].TrackID != "1" {
		t.Errorf("items = %+v", body.Items)
	}

	if rec := env.do(http.MethodGet, "/api/history?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestInfra(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *deps.Deps) {
		d.Redis = failingPinger{err: errors.New("connection refused")}
	})
	env.tracker.jobs = []domain.Job{{TrackID: "a", Status: domain.JobQueued}}

	rec := env.do(http.MethodGet, "/api/infra", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Mode       string                     `json:"mode"`
		Components map[string]componentStatus `json:"components"`
	}](t, rec)
	if body.Mode != "degraded" {
		t.Errorf("mode = %q, want degraded", body.Mode)
	}
	if body.Components["redis"].OK {
		t.Error("redis should be reported down")
	}
	if body.Components["history"].Mode != "disabled" {
		t.Errorf("history = %+v", body.Components["history"])
	}
	if n := body.Components["tracker"].ActiveJobs; n == nil || *n != 1 {
		t.Errorf("active jobs = %v", n)
	}
}

// componentStatus mirrors the infra payload for decoding.
type componentStatus struct {
	OK         bool   `json:"ok"`
	Mode       string `json:"mode"`
	ActiveJobs *int   `json:"active_jobs"`
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *deps.Deps) {
		cfg.AllowedOrigins = []string{"https://play.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/downloads", nil)
	req.Header.Set("Origin", "https://play.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://play.example.com" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/downloads", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign preflight allowed origin %q", got)
	}
}

func TestAccessRestrictions(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *deps.Deps) {
		d.AllowedHosts = []string{"localhost"}
		d.AllowedCIDRS = []string{"127.0.0.1/32"}
	})

	tests := []struct {
		name   string
		host   string
		remote string
		want   int
	}{
		{"local client", "localhost:7337", "127.0.0.1:5000", http.StatusOK},
		{"rebinding host", "evil.example:7337", "127.0.0.1:5000", http.StatusForbidden},
		{"remote client", "localhost:7337", "10.0.0.8:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
			req.Host = tt.host
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		t.Helper()
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "event: ") {
				return strings.TrimPrefix(line, "event: ")
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	if got := next(); got != "connectionChanged" {
		t.Fatalf("first event = %q, want connectionChanged", got)
	}

	// the subscription is registered before the greeting is flushed
	env.hub.Publish(events.Queued("42", "q42", "Song"))
	if got := next(); got != "downloadQueued" {
		t.Errorf("event = %q, want downloadQueued", got)
	}
}
