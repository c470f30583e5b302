package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingRoot is returned when a session-scoped operation runs outside a session root.
var ErrMissingRoot = errors.New("missing root")

// ErrNoSuchElement is matched by every SlotError.
var ErrNoSuchElement = errors.New("no such element")

// ErrHostContext is returned when the host-native request context is not available.
var ErrHostContext = errors.New("host context is not available")

// ErrSnapshotNotFound is returned when a session snapshot cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrSessionClosed is returned by operations on a closed session root.
var ErrSessionClosed = errors.New("session closed")

// ProtocolError is returned when the server answers with a non-successful HTTP status.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.StatusCode)
}

// SlotError is returned when a slot identifier is absent from the resolved elements.
type SlotError struct {
	ID string
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("no such element: %s", e.ID)
}

// Is lets errors.Is(err, ErrNoSuchElement) match any SlotError.
func (e *SlotError) Is(target error) bool {
	return target == ErrNoSuchElement
}
