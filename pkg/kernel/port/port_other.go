//go:build !windows

package port

import "fmt"

// NewDialer returns a dialer that always reports the port as unavailable.
func NewDialer() Dialer {
	return DialerFunc(func(name string) (Conn, error) {
		return nil, fmt.Errorf("%w: %s: filter manager is only available on windows", ErrUnavailable, name)
	})
}
