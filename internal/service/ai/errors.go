package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable indicates the generative backend is not
	// configured or not reachable at all.
	ErrBackendUnavailable = errors.New("generative backend unavailable")

	// ErrBackendTimeout indicates the backend did not answer within the
	// caller's deadline. The call is abandoned; a late response is dropped.
	ErrBackendTimeout = errors.New("generative backend timed out")
)

// BackendError wraps any other failure reported by the backend.
type BackendError struct {
	Details string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("generative backend error: %s", e.Details)
}

// Recoverable reports whether a SendTurn failure is worth one
// rebuild-and-retry attempt. Unavailability is not: there is no backend to
// retry against.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBackendTimeout) {
		return true
	}
	var backendErr *BackendError
	return errors.As(err, &backendErr)
}
