package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"time"

	"greencredits/pkg/platform/sentinel"
)

// Client calls the verification collaborator over HTTP. The collaborator
// accepts a multipart upload of the certificate document and returns a
// structured verdict.
//
// Retry policy: transport failures (connection refused, timeouts) are retried
// up to Retries times with exponential backoff. Any delivered HTTP response,
// success or error, is final — a collaborator verdict must not be retried.
type Client struct {
	baseURL string
	http    *http.Client
	retries int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used by tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a collaborator client. timeout bounds each attempt;
// retries is the number of additional attempts after the first.
func NewClient(baseURL string, timeout time.Duration, retries int, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		retries: retries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify submits the document to the collaborator and returns its verdict.
func (c *Client) Verify(ctx context.Context, filename string, document []byte) (*Response, error) {
	body, contentType, err := encodeMultipart(filename, document)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, body, contentType)
		if err == nil {
			return resp, nil
		}

		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			// The collaborator answered; its verdict is final.
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("verifier unreachable after %d attempts: %w: %w",
		c.retries+1, sentinel.ErrUnavailable, lastErr)
}

func (c *Client) attempt(ctx context.Context, body []byte, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/authenticate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verifier request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call verifier: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read verifier response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, &UpstreamError{
			StatusCode: httpResp.StatusCode,
			Message:    upstreamMessage(raw, httpResp.StatusCode),
		}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &UpstreamError{
			StatusCode: httpResp.StatusCode,
			Message:    "verifier returned an unparseable response",
		}
	}
	resp.Raw = raw
	return &resp, nil
}

func encodeMultipart(filename string, document []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("certificate", filename)
	if err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// upstreamMessage extracts the collaborator's own error message so it can be
// surfaced verbatim, falling back to the status text.
func upstreamMessage(raw []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	base := 250 * time.Millisecond << (attempt - 1)
	delay := base + time.Duration(rand.Int63n(int64(base)/2+1))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
