package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-rag-client/internal/errors"
)

// ErrNoConnection marks calls that received no response: refused connections,
// DNS failures and timeouts alike.
var ErrNoConnection = errors.ErrNoConnection

// ErrSessionChanged means the session was signed out or replaced while a
// refresh was in flight, so the refreshed tokens were discarded.
var ErrSessionChanged = errors.ErrSessionChanged

// APIError is a non-2xx response. Detail carries the server's "detail" text when it sent one.
type APIError struct {
	StatusCode int
	Detail     string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// RefreshError is returned instead of the original 401 when the access token
// could not be renewed. The session that held the refresh token has already
// been cleared, or was signed out or replaced while the refresh ran.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "session expired: token refresh failed: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ValidationError rejects input before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports a 401 that reached the caller, or a failed refresh.
func IsUnauthorized(err error) bool {
	var refreshErr *RefreshError
	return StatusCode(err) == http.StatusUnauthorized || errors.As(err, &refreshErr)
}

func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNoConnection)
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Detail returns the server supplied detail text of an APIError in err's chain.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

const maxErrorBody = 64 << 10

func newAPIError(req *http.Request, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Detail:     parseDetail(raw),
		Method:     req.Method,
		Path:       req.URL.Path,
	}
}

// parseDetail understands {"detail": "..."} and the list form used for
// request validation failures, [{"msg": "...", "loc": [...]}].
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg == "" {
				continue
			}
			if len(item.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
			} else {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.Trim(string(body.Detail), `"`)
}
