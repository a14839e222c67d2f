// Package device defines a unified interface for the line oriented link to the Pi.
// It abstracts reading and writing line-based data with optional timeouts.
package device

import (
	"errors"
	"time"
)

var (
	// ErrReadTimeout is returned by ReadLine when no full line arrived in time.
	ErrReadTimeout = errors.New("read timeout")
	// ErrClosed is returned once the device (or its peer) has been closed.
	ErrClosed = errors.New("device closed")
)

// Device defines an abstract interface for communication devices (e.g., serial, in-memory pipe).
type Device interface {
	// ReadLine reads a single line terminated by '\n'. The terminator and
	// any trailing '\r' are stripped.
	// If timeout > 0, it returns ErrReadTimeout after timeout when no line is available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by '\n' to the device.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	Close() error
}
