package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

// defaultRejection is used when a 4xx carries no detail.
const defaultRejection = "Invalid audio file"

// transportError classifies a failure to get a response at all.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("analysis: %w: %w", domain.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("analysis: %w: %w", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("analysis: request canceled: %w", err)
	}
	return domain.UnavailableError{Cause: err}
}

// statusError maps a non-2xx response to a domain error kind.
func statusError(resp *http.Response, body []byte) error {
	detail := parseDetail(body)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		if detail == "" {
			detail = defaultRejection
		}
		return fmt.Errorf("analysis: rejected: %w", domain.Invalid("audio", "%s", detail))
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return domain.UnavailableError{
			RetryAfter: parseRetryAfter(resp),
			Cause:      fmt.Errorf("status %d", resp.StatusCode),
		}
	case http.StatusGatewayTimeout:
		return fmt.Errorf("analysis: status %d: %w", resp.StatusCode, domain.ErrTimeout)
	default:
		if detail != "" {
			return fmt.Errorf("analysis: status %d: %s: %w", resp.StatusCode, detail, domain.ErrInternal)
		}
		return fmt.Errorf("analysis: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}
}

// parseDetail extracts the "detail" message of an error body. Structured
// details are returned as compact JSON.
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Detail == nil {
		return ""
	}
	if s, ok := eb.Detail.(string); ok {
		return strings.TrimSpace(s)
	}
	raw, err := json.Marshal(eb.Detail)
	if err != nil {
		return ""
	}
	return string(raw)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}
