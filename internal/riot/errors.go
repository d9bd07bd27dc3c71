package riot

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind int

const (
	// KindTransient covers rate limiting, 5xx and network failures. These are
	// retried internally and only surface when the context ends or a retry
	// cap is configured and exhausted.
	KindTransient ErrorKind = iota + 1
	// KindFatal is any other non-200 response. Never retried.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// FetchError is returned by Client.Fetch for every failed request.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int // 0 when no response was received
	URL        string
	Body       string // truncated response body, fatal responses only
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s fetch error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a FetchError of kind KindFatal.
func IsFatal(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindFatal
}

// IsAuthError reports whether err is a 401 or 403 response, which almost
// always means the API key expired or was revoked.
func IsAuthError(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.StatusCode == http.StatusUnauthorized || fe.StatusCode == http.StatusForbidden
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
