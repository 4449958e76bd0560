package realtime

import (
	"errors"
	"fmt"
)

// ErrNotConnected means nobody is listening. It is expected and frequent:
// callers log it at debug level and move on.
var ErrNotConnected = errors.New("recipient is not connected")

// ConnectionNotFoundError is returned when no connection is registered for
// the id.
type ConnectionNotFoundError struct {
	Audience string
	ID       string
}

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("no %s connection for %s", e.Audience, e.ID)
}

func (e *ConnectionNotFoundError) Unwrap() error { return ErrNotConnected }

// SocketNotOpenError is returned when the registered socket was already
// closed or failed while writing. Cause is nil for the former.
type SocketNotOpenError struct {
	Audience string
	ID       string
	Cause    error
}

func (e *SocketNotOpenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s connection for %s failed: %v", e.Audience, e.ID, e.Cause)
	}
	return fmt.Sprintf("%s connection for %s is not open", e.Audience, e.ID)
}

func (e *SocketNotOpenError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrNotConnected, e.Cause}
	}
	return []error{ErrNotConnected}
}
