//go:build linux

// Package serialport adapts a Linux serial device (raw mode, arbitrary
// baud rate via termios2/BOTHER) to serialink.ByteChannel. It is the real
// collaborator behind cmd/serialink; tests of the protocol itself use an
// in-memory fake instead (see serialink's own test helpers).
package serialport

import (
	"fmt"
	"syscall"
	"time"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"

	"github.com/serialink-go/serialink"
)

// Port is a raw-mode serial device opened for exclusive use by one
// serialink.LinkEndpoint.
type Port struct {
	fd     int
	closed bool
}

// Open opens name in raw non-canonical mode at baud, ready to drive as a
// ByteChannel. baud is applied via termios2/BOTHER so any integer rate is
// accepted, not just the fixed Bnnnn table.
func Open(name string, baud uint32) (*Port, error) {
	fd, err := syscall.Open(name, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}
	t, err := getTermios2(fd)
	if err != nil {
		_ = syscall.Close(fd)
		return nil, fmt.Errorf("serialport: get termios2: %w", err)
	}
	t.makeRaw()
	t.setCustomSpeed(baud)
	if err := setTermios2(fd, t); err != nil {
		_ = syscall.Close(fd)
		return nil, fmt.Errorf("serialport: set termios2: %w", err)
	}
	return &Port{fd: fd}, nil
}

// ReadByte blocks for at most timeout waiting for one byte to arrive.
func (p *Port) ReadByte(timeout time.Duration) (byte, error) {
	if p.closed {
		return 0, fmt.Errorf("serialport: read on closed port")
	}
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		return 0, fmt.Errorf("serialport: poll: %w", err)
	}
	if n == 0 {
		// The poll deadline passed with no byte available: the same
		// would-block signal iox uses for other non-blocking transports,
		// reported to the link layer as serialink.ErrTimeout.
		return 0, fmt.Errorf("%w: %w", serialink.ErrTimeout, iox.ErrWouldBlock)
	}
	var buf [1]byte
	if _, err := syscall.Read(p.fd, buf[:]); err != nil {
		return 0, fmt.Errorf("serialport: read: %w", err)
	}
	return buf[0], nil
}

// Write writes every byte of buf or returns an error.
func (p *Port) Write(buf []byte) error {
	if p.closed {
		return fmt.Errorf("serialport: write on closed port")
	}
	for len(buf) > 0 {
		n, err := syscall.Write(p.fd, buf)
		if err != nil {
			return fmt.Errorf("serialport: write: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Close releases the underlying file descriptor. Idempotent.
func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return syscall.Close(p.fd)
}
