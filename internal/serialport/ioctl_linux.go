//go:build linux

package serialport

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// Request numbers for the termios2 ioctls, adapted from
// Daedaluz-goserial's ioctl_linux.go. TCGETS2/TCSETS2 are the only two this
// adapter needs: termios2 is read, raw mode and the requested baud are
// applied, then written back in one shot.
var (
	tcgets2 = ioctl.IOR('T', 0x2A, unsafe.Sizeof(Termios2{}))
	tcsets2 = ioctl.IOW('T', 0x2B, unsafe.Sizeof(Termios2{}))
)

func getTermios2(fd int) (*Termios2, error) {
	t := &Termios2{}
	if err := ioctl.Ioctl(uintptr(fd), tcgets2, termios2Ptr(t)); err != nil {
		return nil, err
	}
	return t, nil
}

func setTermios2(fd int, t *Termios2) error {
	return ioctl.Ioctl(uintptr(fd), tcsets2, termios2Ptr(t))
}
