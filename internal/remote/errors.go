package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nfcescan/internal/core"
)

var (
	// ErrConnectivity covers transport failures and timeouts.
	ErrConnectivity = errors.New("could not reach the receipt service")
	// ErrNotReceipt means the scanned URL was rejected as an NFC-e.
	ErrNotReceipt = errors.New("not a valid NFC-e QR code")
	// ErrUpstreamUnavailable means the tax authority site behind a scan is down.
	ErrUpstreamUnavailable = errors.New("receipt site unavailable")
	ErrCategoryExists      = errors.New("category already exists")
	ErrNotFound            = errors.New("not found")
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Op     string
	Code   int
	Kind   string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Detail)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func newStatusError(op string, code int, body []byte) *StatusError {
	se := &StatusError{Op: op, Code: code}
	var apiErr core.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		se.Detail = strings.TrimSpace(string(body))
		return se
	}
	switch d := apiErr.Detail.(type) {
	case string:
		se.Detail = d
	case map[string]any:
		if kind, ok := d["error"].(string); ok {
			se.Kind = kind
		}
		if msg, ok := d["message"].(string); ok {
			se.Detail = msg
		}
	}
	return se
}
