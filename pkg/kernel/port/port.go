// Package port connects to the minifilter's named communication port.
//
// On Windows the port is opened through fltlib.dll. Elsewhere Dial always
// fails with ErrUnavailable and the agent runs in simulation mode.
package port

import "errors"

// DefaultName is the port the DLP minifilter registers.
const DefaultName = `\DlpPort`

// ErrUnavailable is returned when the port cannot be opened, typically
// because the driver is not loaded.
var ErrUnavailable = errors.New("kernel communication port unavailable")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("kernel communication port closed")

// Conn is an open port handle.
type Conn interface {
	// Send writes one message and returns the driver status. A zero status is
	// success. The error is reserved for failures to reach the driver at all.
	Send(msg []byte) (status uint32, err error)

	// Close releases the handle.
	Close() error
}

// Dialer opens ports by name.
type Dialer interface {
	Dial(name string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(name string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(name string) (Conn, error) {
	return f(name)
}
