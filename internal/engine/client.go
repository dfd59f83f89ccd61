// Package engine is the HTTP client for the analysis engine: multipart job
// submission, status lookups and the engine's server-sent event stream.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrUnavailable means the engine could not be reached at all.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrJobNotFound is returned by Status for an id the engine does not know.
	ErrJobNotFound = errors.New("engine: job not found")
)

// APIError is a non-2xx answer from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine: status %d: %s", e.StatusCode, e.Message)
}

// Upload is one file handed to the engine.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Status is the engine's view of a job. PatientInfo is whatever the
// submitter attached, usually a JSON document encoded as a string.
type Status struct {
	JobID       string          `json:"jobId"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message"`
	Result      json.RawMessage `json:"result,omitempty"`
	PatientInfo json.RawMessage `json:"patientInfo,omitempty"`
}

// Client communicates with the analysis engine over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// stream has no overall timeout; the event stream is long-lived and is
	// bounded by the caller's context instead.
	stream *http.Client
}

// New creates a Client targeting baseURL. timeout bounds every request
// except the event stream.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		stream:     &http.Client{Timeout: 0},
	}
}

type submitResponse struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// Submit sends the upload (and the raw patientInfo JSON, if any) to
// POST /analyze and returns the engine-assigned job id.
func (c *Client) Submit(ctx context.Context, up Upload, patientInfo []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, up.Filename))
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return "", fmt.Errorf("writing file part: %w", err)
	}
	if len(patientInfo) > 0 {
		if err := mw.WriteField("patientInfo", string(patientInfo)); err != nil {
			return "", fmt.Errorf("writing patientInfo: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &buf)
	if err != nil {
		return "", fmt.Errorf("creating submit request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiError(resp.StatusCode, body)
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &APIError{StatusCode: http.StatusBadGateway, Message: "malformed engine response"}
	}
	if out.JobID == "" {
		// The engine reports some failures as 200 {"error": "..."}.
		msg := out.Error
		if msg == "" {
			msg = "engine returned no job id"
		}
		return "", &APIError{StatusCode: http.StatusBadGateway, Message: msg}
	}
	return out.JobID, nil
}

// Status fetches GET /status/{id}.
func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrJobNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, body)
	}

	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	if st.JobID == "" {
		st.JobID = id
	}
	return &st, nil
}

// Open connects to GET /events and returns the raw event stream. The caller
// owns the body and must close it.
func (c *Client) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("creating events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, apiError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// classify folds transport failures that mean "nobody is listening" into
// ErrUnavailable, keeping the cause in the chain.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if unreachable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func unreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Detail != nil:
			if s, ok := payload.Detail.(string); ok {
				msg = s
			} else if b, err := json.Marshal(payload.Detail); err == nil {
				msg = string(b)
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
