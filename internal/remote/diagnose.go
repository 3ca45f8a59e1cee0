package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/utils"
)

// Diagnostic endpoints exposed by the download service besides /status.
const (
	EndpointStatus = "status"
	EndpointEcho   = "echo"
	EndpointTest   = "test"
)

// TestHeader is sent on diagnostics; the echo endpoint returns it.
const TestHeader = "X-Test-Header"

// Diagnosis is the outcome of one diagnostic request.
type Diagnosis struct {
	Endpoint    string
	Method      string
	StatusCode  int
	Latency     time.Duration
	AllowOrigin string // Access-Control-Allow-Origin of the answer
	Body        map[string]any
	Err         error
}

// OK reports whether the endpoint answered 2xx with a JSON object.
func (d Diagnosis) OK() bool {
	return d.Err == nil
}

// Diagnose calls one diagnostic endpoint. "test" is a POST with a small JSON
// payload, the others are GETs. Failures are reported in Diagnosis.Err.
func (c *Client) Diagnose(ctx context.Context, baseURL, endpoint string) Diagnosis {
	d := Diagnosis{Endpoint: endpoint, Method: http.MethodGet}

	u, err := url.Parse(baseURL + "/" + endpoint)
	if err != nil {
		d.Err = fmt.Errorf("%w: invalid base url: %v", domain.ErrUnreachable, err)
		return d
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	var body io.Reader = http.NoBody
	if endpoint == EndpointTest {
		d.Method = http.MethodPost
		payload, _ := json.Marshal(map[string]any{
			"test":      true,
			"timestamp": c.now().UTC().Format(time.RFC3339),
		})
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, u.String(), body)
	if err != nil {
		d.Err = fmt.Errorf("%w: create request: %v", domain.ErrUnreachable, err)
		return d
	}
	c.setHeaders(req)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(TestHeader, "dlbridge-probe")
	if c.opts.Origin != "" {
		req.Header.Set("Origin", c.opts.Origin)
	}

	start := c.now()
	resp, err := c.client.Do(req)
	d.Latency = c.now().Sub(start)
	if err != nil {
		d.Err = fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
		return d
	}
	defer utils.Close(resp.Body)

	d.StatusCode = resp.StatusCode
	d.AllowOrigin = resp.Header.Get("Access-Control-Allow-Origin")
	if err := checkStatusCode(resp.StatusCode); err != nil {
		d.Err = err
		return d
	}
	if err := json.NewDecoder(resp.Body).Decode(&d.Body); err != nil {
		d.Err = fmt.Errorf("%w: decode response: %v", domain.ErrUnreachable, err)
		return d
	}
	if endpoint == EndpointStatus && d.Body["status"] != StatusRunning {
		d.Err = fmt.Errorf("%w: service reported status %v", domain.ErrUnreachable, d.Body["status"])
	}
	return d
}
