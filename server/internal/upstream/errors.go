package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned before any network call when the
	// category requires a credential that is not set.
	ErrMissingCredential = errors.New("access key not configured")

	// ErrNotConfigured means the category has no upstream URL.
	ErrNotConfigured = errors.New("upstream not configured")

	// ErrTimeout means the category's call deadline elapsed.
	ErrTimeout = errors.New("upstream timed out")

	ErrUnknownCategory = errors.New("unknown upstream category")
)

// UpstreamError wraps every failure returned by Client.Call.
type UpstreamError struct {
	Category Category
	Cause    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Category, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// scrubbedError keeps the error chain of a transport failure while its
// message has credential values replaced.
type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }
