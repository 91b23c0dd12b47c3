//go:build windows

package port

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	fltlib                             = windows.NewLazySystemDLL("fltlib.dll")
	procFilterConnectCommunicationPort = fltlib.NewProc("FilterConnectCommunicationPort")
	procFilterSendMessage              = fltlib.NewProc("FilterSendMessage")
)

// NewDialer returns a dialer backed by fltlib.dll.
func NewDialer() Dialer {
	return DialerFunc(dial)
}

func dial(name string) (Conn, error) {
	if err := fltlib.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	wide, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid port name %q: %w", name, err)
	}

	var handle windows.Handle
	hr, _, _ := procFilterConnectCommunicationPort.Call(
		uintptr(unsafe.Pointer(wide)),
		0,
		0,
		0,
		0,
		uintptr(unsafe.Pointer(&handle)),
	)
	if hr != 0 {
		return nil, fmt.Errorf("%w: connect %s: HRESULT 0x%08X", ErrUnavailable, name, uint32(hr))
	}
	return &filterConn{handle: handle}, nil
}

type filterConn struct {
	mu     sync.Mutex
	handle windows.Handle
	closed bool
}

func (c *filterConn) Send(msg []byte) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if len(msg) == 0 {
		return 0, fmt.Errorf("empty message")
	}

	var returned uint32
	hr, _, _ := procFilterSendMessage.Call(
		uintptr(c.handle),
		uintptr(unsafe.Pointer(&msg[0])),
		uintptr(uint32(len(msg))),
		0,
		0,
		uintptr(unsafe.Pointer(&returned)),
	)
	return uint32(hr), nil
}

func (c *filterConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return windows.CloseHandle(c.handle)
}
