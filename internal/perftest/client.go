// Package perftest uploads run artifacts to a perftest result service.
//
// The protocol has three calls:
//
//	GET  {endpoint}/                  -> {"test_result_id": <int>}
//	POST {endpoint}/attachment        <- {"test_result_id", "type", "subtype", "description", "content_type"}
//	                                  -> {"id": <int>}
//	POST {endpoint}/attachment/{id}   <- raw artifact bytes
package perftest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/report"
	"github.com/xtxerr/perfstat/internal/validation"
)

var log = logging.Component("perftest")

// =============================================================================
// Client Configuration
// =============================================================================

// Config holds client configuration.
type Config struct {
	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retries is the number of extra attempts after a transport error or a
	// 5xx response.
	Retries int

	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration

	// Concurrency limits parallel chart uploads.
	Concurrency int

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     config.DefaultUploadTimeout,
		Retries:     config.DefaultUploadRetries,
		Backoff:     config.DefaultUploadBackoff,
		Concurrency: config.DefaultUploadConcurrency,
	}
}

// =============================================================================
// Client
// =============================================================================

// Client talks to one perftest endpoint. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	retries  int
	backoff  time.Duration
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return errors.ErrUpload
}

// Temporary reports whether the server asked for a retry.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, cfg *Config) (*Client, error) {
	if err := validation.ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = config.DefaultUploadTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: endpoint,
		http:     hc,
		retries:  max(cfg.Retries, 0),
		backoff:  cfg.Backoff,
	}, nil
}

// Endpoint returns the endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// TestResultID fetches the id of the test result the endpoint addresses.
func (c *Client) TestResultID(ctx context.Context) (int64, error) {
	var resp struct {
		TestResultID *int64 `json:"test_result_id"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint+"/", "", nil, &resp); err != nil {
		return 0, err
	}
	if resp.TestResultID == nil {
		return 0, fmt.Errorf("GET %s/: response has no test_result_id: %w", c.endpoint, errors.ErrUpload)
	}
	return *resp.TestResultID, nil
}

type attachmentMeta struct {
	TestResultID int64  `json:"test_result_id"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype"`
	Description  string `json:"description"`
	ContentType  string `json:"content_type"`
}

// CreateAttachment registers the metadata of a and returns the attachment id.
func (c *Client) CreateAttachment(ctx context.Context, resultID int64, a *report.Artifact) (int64, error) {
	body, err := json.Marshal(attachmentMeta{
		TestResultID: resultID,
		Type:         a.Kind,
		Subtype:      a.Subtype,
		Description:  a.Description,
		ContentType:  a.ContentType,
	})
	if err != nil {
		return 0, fmt.Errorf("encode attachment: %w", err)
	}

	var resp struct {
		ID *int64 `json:"id"`
	}
	url := c.endpoint + "/attachment"
	if err := c.do(ctx, http.MethodPost, url, "application/json", body, &resp); err != nil {
		return 0, err
	}
	if resp.ID == nil {
		return 0, fmt.Errorf("POST %s: response has no id: %w", url, errors.ErrUpload)
	}
	return *resp.ID, nil
}

// UploadContent sends the bytes of a to an attachment created earlier.
func (c *Client) UploadContent(ctx context.Context, attachmentID int64, a *report.Artifact) error {
	url := fmt.Sprintf("%s/attachment/%d", c.endpoint, attachmentID)
	return c.do(ctx, http.MethodPost, url, a.ContentType, a.Data, nil)
}

// Upload creates an attachment for a and uploads its content.
func (c *Client) Upload(ctx context.Context, resultID int64, a *report.Artifact) (int64, error) {
	id, err := c.CreateAttachment(ctx, resultID, a)
	if err != nil {
		return 0, fmt.Errorf("create attachment %s: %w", a.Name, err)
	}
	if err := c.UploadContent(ctx, id, a); err != nil {
		return 0, fmt.Errorf("upload %s: %w", a.Name, err)
	}
	log.Info("uploaded", "type", a.Kind, "subtype", a.Subtype, "attachment", id)
	return id, nil
}

// do sends one request, retrying transport errors and 5xx responses with
// linear backoff. out, if non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.once(ctx, method, url, contentType, body, out)
		if err == nil || attempt >= c.retries || !retriable(err) || ctx.Err() != nil {
			return err
		}

		wait := c.backoff * time.Duration(attempt+1)
		log.Warn("request failed, retrying",
			"method", method,
			"url", url,
			"attempt", attempt+1,
			"wait", wait,
			"error", err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return err
		}
	}
}

func (c *Client) once(ctx context.Context, method, url, contentType string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if out != nil {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, config.MaxErrorBodySize))
		return &StatusError{
			Method: method,
			URL:    url,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w: %w", method, url, errors.ErrUpload, err)
	}
	return nil
}

// classify maps a transport error onto the error taxonomy.
func classify(method, url string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s %s: %w: %w", method, url, errors.ErrTimeout, err)
	}
	return fmt.Errorf("%s %s: %w: %w", method, url, errors.ErrConnectionFailed, err)
}

func retriable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return errors.IsRetriable(err)
}
