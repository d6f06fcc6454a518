package domain

import (
	"errors"
	"net"
)

// ErrNetwork marks failures where the backend never produced a usable response.
var ErrNetwork = errors.New("network error")

// RejectedError is returned when the backend answered and refused the request.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// IsNetwork reports whether err is a connection-level failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// AsRejected unwraps a backend rejection.
func AsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}
