package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// RequestError reports a failed registry request. Status is 0 when no HTTP
// response was received.
type RequestError struct {
	URL          string // full request URL; may carry credentials, do not display
	SanitizedURL string // scheme, host and path only
	Status       int
	Err          error
}

func newRequestError(rawURL string, status int, err error) *RequestError {
	return &RequestError{
		URL:          rawURL,
		SanitizedURL: SanitizeURL(rawURL),
		Status:       status,
		Err:          err,
	}
}

func (e *RequestError) Error() string {
	msg := e.Message()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Message is the user-facing form of the error, without the cause.
func (e *RequestError) Message() string {
	status := "unknown"
	if e.Status != 0 {
		status = fmt.Sprint(e.Status)
	}
	return fmt.Sprintf("Registry request failed (%s) for %s", status, e.SanitizedURL)
}

func (e *RequestError) Unwrap() error { return e.Err }

// SanitizeURL strips credentials, query and fragment from a URL so it is
// safe to log or display.
func SanitizeURL(raw string) string {
	if raw == "" {
		return "<unknown>"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		raw, _, _ = strings.Cut(raw, "?")
		raw, _, _ = strings.Cut(raw, "#")
		if len(raw) > 80 {
			return raw[:77] + "..."
		}
		return raw
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// FormatError renders a discovery error for display.
func FormatError(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message()
	}
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		return err.Error()
	}
	return "Unknown registry error"
}
