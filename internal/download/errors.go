package download

import (
	"errors"
	"fmt"
)

// ErrTooManyRedirects is returned when a redirect chain exceeds the hop limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// HTTPStatusError reports a final response that was neither a success nor a
// followable redirect.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
}

// RedirectError reports a redirect response without a usable Location header.
type RedirectError struct {
	StatusCode int
	URL        string
	Reason     string
}

func (e *RedirectError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing Location header"
	}
	return fmt.Sprintf("redirect %d from %s: %s", e.StatusCode, e.URL, reason)
}
