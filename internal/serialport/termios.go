package serialport

import "unsafe"

// Termios2 mirrors the Linux kernel's struct termios2, which extends the
// classic termios with explicit input/output speed fields accessed via
// BOTHER — the only way to request a baud rate outside the fixed Bnnnn
// constant table. Field layout is load-bearing: it is passed by pointer to
// TCGETS2/TCSETS2 and must match the kernel's struct exactly.
type Termios2 struct {
	Iflag  uint32
	Oflag  uint32
	Cflag  uint32
	Lflag  uint32
	Line   byte
	Cc     [19]byte
	ISpeed uint32
	OSpeed uint32
}

// Input, output, control and local mode flags actually touched by this
// adapter. Trimmed to what raw mode and baud selection need; see
// Daedaluz-goserial for the full flag set this is adapted from.
const (
	iflagIGNBRK uint32 = 0000001
	iflagBRKINT uint32 = 0000002
	iflagPARMRK uint32 = 0000010
	iflagISTRIP uint32 = 0000040
	iflagINLCR  uint32 = 0000100
	iflagIGNCR  uint32 = 0000200
	iflagICRNL  uint32 = 0000400
	iflagIXON   uint32 = 0002000

	oflagOPOST uint32 = 0000001

	cflagCSIZE  uint32 = 0000060
	cflagCS8    uint32 = 0000060
	cflagPARENB uint32 = 0000400
	cflagCBAUD  uint32 = 0010017
	cflagBOTHER uint32 = 0010000
	cflagCREAD  uint32 = 0000200
	cflagCLOCAL uint32 = 0004000

	lflagISIG   uint32 = 0000001
	lflagICANON uint32 = 0000002
	lflagECHO   uint32 = 0000010
	lflagECHONL uint32 = 0000100
	lflagIEXTEN uint32 = 0100000

	idxVMIN  = 6
	idxVTIME = 5
)

// makeRaw clears the flags that would make the line discipline interpret
// bytes instead of passing them through untouched, matching
// Termios2.MakeRaw in Daedaluz-goserial.
func (t *Termios2) makeRaw() {
	t.Iflag &^= iflagIGNBRK | iflagBRKINT | iflagPARMRK | iflagISTRIP | iflagINLCR | iflagIGNCR | iflagICRNL | iflagIXON
	t.Oflag &^= oflagOPOST
	t.Lflag &^= lflagECHO | lflagECHONL | lflagICANON | lflagISIG | lflagIEXTEN
	t.Cflag &^= cflagCSIZE | cflagPARENB
	t.Cflag |= cflagCS8 | cflagCREAD | cflagCLOCAL
	// VMIN=1, VTIME=0: each Read blocks for at least one byte with no
	// kernel-side inter-byte timer. Timeout is layered on top via poll, not
	// via VTIME, so the adapter reports a clean ErrTimeout instead of a
	// truncated read.
	t.Cc[idxVMIN] = 1
	t.Cc[idxVTIME] = 0
}

// setCustomSpeed requests baud via BOTHER, the termios2 path for rates not
// present in the fixed Bnnnn table.
func (t *Termios2) setCustomSpeed(baud uint32) {
	t.Cflag &^= cflagCBAUD
	t.Cflag |= cflagBOTHER
	t.ISpeed = baud
	t.OSpeed = baud
}

func termios2Ptr(t *Termios2) uintptr { return uintptr(unsafe.Pointer(t)) }
