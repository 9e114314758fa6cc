package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxErrorBody caps how many bytes of a response body Error prints.
const maxErrorBody = 200

var (
	// ErrNetwork wraps connection-level failures: refused, reset, timeouts.
	ErrNetwork = errors.New("network error")
	// ErrAuthExpired is a 401 on a request that already used its one retry.
	ErrAuthExpired = errors.New("authorization expired")
	// ErrRefreshFailed is terminal: tokens were cleared and the user must log in again.
	ErrRefreshFailed = errors.New("token refresh failed")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoRefreshToken     = errors.New("no refresh token in session")

	ErrReportNotFound = errors.New("weekly report endpoint not found")
	ErrReportFailed   = errors.New("server error generating report")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, body)
}

// ResponseBody is the raw body as sent by the backend.
func (e *StatusError) ResponseBody() string {
	return e.Body
}

// RefreshError reports a failed token refresh. Original is the 401 that
// triggered the refresh, Cause is why the refresh itself failed.
type RefreshError struct {
	Original error
	Cause    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v (after %v)", ErrRefreshFailed, e.Cause, e.Original)
}

func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

func (e *RefreshError) Unwrap() []error {
	return []error{e.Original, e.Cause}
}

// IsStatus reports whether err carries a backend response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
