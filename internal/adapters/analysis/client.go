// Package analysis provides an adapter for the external audio analysis
// service. It uploads audio as multipart form data and maps the snake_case
// response into domain AnalysisRecords.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/ports"
)

const (
	defaultBaseURL = "http://localhost:8001"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// Client talks to the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// compile-time interface assertion
var _ ports.AnalysisProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource supplies a service token for uploads that carry no
// caller token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// NewClient constructs a Client. The request deadline comes from the
// caller's context; the http.Client timeout is only a backstop.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze posts the audio to /analyze and maps the result.
func (c *Client) Analyze(ctx context.Context, in ports.AudioUpload) (domain.AnalysisRecord, error) {
	body, contentType, err := encodeUpload(in)
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("analysis: encode upload: %w: %w", domain.ErrInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("analysis: build request: %w: %w", domain.ErrInternal, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(req, in.AuthToken); err != nil {
		return domain.AnalysisRecord{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AnalysisRecord{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.AnalysisRecord{}, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.AnalysisRecord{}, statusError(resp, raw)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("analysis: decode response: %w: %w", domain.ErrInternal, err)
	}
	return MapResult(result), nil
}

// Health checks GET /health. Any failure is reported as unavailable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("analysis: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UnavailableError{Cause: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return domain.UnavailableError{
			RetryAfter: parseRetryAfter(resp),
			Cause:      fmt.Errorf("health status %d", resp.StatusCode),
		}
	}
	return nil
}

// authorize forwards the caller's bearer token, or falls back to the
// configured service token source.
func (c *Client) authorize(req *http.Request, callerToken string) error {
	if callerToken != "" {
		(&oauth2.Token{AccessToken: callerToken, TokenType: "Bearer"}).SetAuthHeader(req)
		return nil
	}
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return domain.UnavailableError{Cause: fmt.Errorf("service token: %w", err)}
	}
	tok.SetAuthHeader(req)
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeUpload(in ports.AudioUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(in.Filename)))
	if in.MimeType != "" {
		h.Set("Content-Type", in.MimeType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(in.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
