package evolution

import (
	"errors"
	"fmt"
)

// ErrTransient marks a request that never produced an HTTP response
// (timeout, refused connection, DNS failure).
var ErrTransient = errors.New("gateway unreachable")

// ErrMalformed marks a response whose body could not be decoded or is missing
// the fields the caller needs.
var ErrMalformed = errors.New("malformed gateway response")

// RejectionError is returned when the gateway answers with a non-2xx status.
type RejectionError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RejectionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway %s %s returned status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("gateway %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej) && rej.Status == 404
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
