package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/utils"
)

// StatusRunning is the only health status accepted as "reachable".
const StatusRunning = "running"

// maxErrorBody bounds how much of a rejection body is kept as diagnostic text.
const maxErrorBody = 4 << 10

// Options configures the client.
type Options struct {
	// Timeout for individual requests. Zero means no client-side timeout.
	// Default: 10s
	Timeout time.Duration

	// Origin is sent on health probes, mirroring a cross-origin caller.
	Origin string

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:   10 * time.Second,
		UserAgent: "dlbridge",
	}
}

// Health is the body of GET /status.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// EnqueueRequest is the body of POST /download/{trackId}.
type EnqueueRequest struct {
	Quality  string         `json:"quality"`
	Metadata map[string]any `json:"metadata"`
}

// EnqueueResponse is the answer to an accepted submission.
type EnqueueResponse struct {
	QueueID  string `json:"queueId"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

// QueueItem is one entry of GET /queue.
type QueueItem struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Position int    `json:"position"`
	Error    string `json:"error,omitempty"`
}

type queueResponse struct {
	Items []QueueItem `json:"items"`
}

// RejectedError is returned when the service answers a submission with a non-2xx status.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("service error (%d): %s", e.StatusCode, e.Body)
}

// Unwrap lets callers match the error with errors.Is(err, domain.ErrRemoteRejected).
func (e *RejectedError) Unwrap() error { return domain.ErrRemoteRejected }

// Client talks to the download service.
type Client struct {
	client *http.Client
	opts   Options
	now    func() time.Time
}

// NewClient creates a new client with the given options.
func NewClient(opts Options) *Client {
	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		now:    time.Now,
	}
}

// Status probes GET {base}/status. Any non-2xx answer, transport error, malformed
// body or status other than "running" is reported as domain.ErrUnreachable.
func (c *Client) Status(ctx context.Context, baseURL string) (*Health, error) {
	u, err := url.Parse(baseURL + "/status")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %v", domain.ErrUnreachable, err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUnreachable, err)
	}
	c.setHeaders(req)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if c.opts.Origin != "" {
		req.Header.Set("Origin", c.opts.Origin)
	}

	var health Health
	if err := c.doJSON(req, &health); err != nil {
		return nil, err
	}
	if health.Status != StatusRunning {
		return &health, fmt.Errorf("%w: service reported status %q", domain.ErrUnreachable, health.Status)
	}
	return &health, nil
}

// Enqueue submits a track to the service. A non-2xx answer yields a *RejectedError
// carrying the response body; transport failures yield domain.ErrUnreachable.
func (c *Client) Enqueue(ctx context.Context, baseURL, trackID string, body EnqueueRequest) (*EnqueueResponse, error) {
	if body.Metadata == nil {
		body.Metadata = map[string]any{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal enqueue request: %w", err)
	}

	endpoint := baseURL + "/download/" + url.PathEscape(trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RejectedError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(text))}
	}

	var out EnqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode enqueue response: %v", domain.ErrUnreachable, err)
	}
	if out.QueueID == "" {
		return nil, fmt.Errorf("%w: enqueue response without queueId", domain.ErrUnreachable)
	}
	return &out, nil
}

// Queue fetches the full queue listing.
func (c *Client) Queue(ctx context.Context, baseURL string) ([]QueueItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/queue", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUnreachable, err)
	}
	c.setHeaders(req)

	var out queueResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Cancel asks the service to drop a queued or running job. Services that do not
// implement cancellation answer 404/405/501, reported as domain.ErrCancelUnsupported.
func (c *Client) Cancel(ctx context.Context, baseURL, queueID string) error {
	endpoint := baseURL + "/queue/" + url.PathEscape(queueID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer utils.Close(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusNotImplemented:
		return domain.ErrCancelUnsupported
	default:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RejectedError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(text))}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
}

// doJSON executes req and decodes a 2xx JSON body into out.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer utils.Close(resp.Body)

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrUnreachable, err)
	}
	return nil
}

// checkStatusCode maps non-success status codes to domain.ErrUnreachable.
func checkStatusCode(code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return fmt.Errorf("%w: service responded with status %d", domain.ErrUnreachable, code)
}

// IsUnreachable reports whether err is a transport level failure.
func IsUnreachable(err error) bool {
	return errors.Is(err, domain.ErrUnreachable)
}
