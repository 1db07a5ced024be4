package datasets

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports an invalid argument or option, detected before any
	// request is made.
	ErrConfig = errors.New("invalid configuration")

	// ErrNotImplemented reports a requested mode that is not supported.
	ErrNotImplemented = errors.New("not implemented")

	// ErrTransport reports a network failure or a non-success HTTP status.
	ErrTransport = errors.New("transport error")

	// ErrDataIntegrity reports a response that does not match the expected
	// record contract.
	ErrDataIntegrity = errors.New("data integrity error")

	// ErrOutOfRange reports a catalog position outside [0, Len()).
	ErrOutOfRange = errors.New("index out of range")
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: POST %s returned status %d", ErrTransport, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: POST %s returned status %d: %s", ErrTransport, e.URL, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrTransport) match status failures.
func (e *StatusError) Unwrap() error {
	return ErrTransport
}

func integrityErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataIntegrity, fmt.Sprintf(format, args...))
}

func isIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}
