package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bp-tracker/internal/common"
)

// HTTPError is a non-2xx response that did not map to a narrower error.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	if e.Status >= 500 {
		return common.ErrServer
	}
	return nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func readErrorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// responseError maps a non-2xx response onto the shared error taxonomy.
func responseError(resp *http.Response) error {
	msg := readErrorMessage(resp)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return &common.ValidationError{Reason: msgOr(msg, "invalid request")}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, msgOr(msg, http.StatusText(resp.StatusCode)))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, msgOr(msg, "not found"))
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", common.ErrRateLimited, msgOr(msg, "try again later"))
	default:
		return &HTTPError{Status: resp.StatusCode, Message: msg}
	}
}

func msgOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

func networkError(err error) error {
	return fmt.Errorf("%w: %v", common.ErrNetwork, err)
}
