package provider

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all providers. Callers classify with errors.Is;
// the server maps classes onto HTTP status codes and the CLI onto exit
// codes.
var (
	// ErrInvalidPath marks a malformed identifier or disk path.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound marks an album, disc, track or cover absent from this
	// provider.
	ErrNotFound = errors.New("not found")

	// ErrFlac marks a FLAC header or decoding failure.
	ErrFlac = errors.New("flac error")

	// ErrRequest marks an upstream HTTP failure, transport or non-2xx.
	ErrRequest = errors.New("request error")
)

// StatusError carries the status code of an upstream non-2xx response.
// It matches ErrRequest under errors.Is.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRequest
}
