package serialink

import "time"

// ByteChannel is the opaque, bidirectional byte pipe a LinkEndpoint drives.
// Implementations are assumed full-duplex with a single reader and a single
// writer; serial-device configuration (raw mode, baud rate, VMIN/VTIME) is
// the implementation's concern, not the link layer's — see
// internal/serialport for the real adapter and scriptedChannel (in tests)
// for the deterministic fake used to exercise the link layer itself.
type ByteChannel interface {
	// ReadByte blocks for at most the implementation-defined inter-byte
	// interval and returns exactly one byte, ErrTimeout, or a channel
	// error.
	ReadByte() (byte, error)

	// Write writes every byte of buf or returns an error.
	Write(buf []byte) error

	// Close releases the underlying device. Close is idempotent.
	Close() error
}

// Timer bounds a single outstanding wait for a peer response. Stop-and-wait
// needs at most one deadline per endpoint at a time, so Timer is a plain
// monotonic deadline compared inside the read loop (see DESIGN.md) rather
// than a signal-driven alarm.
type Timer struct {
	deadline time.Time
	armed    bool
}

// Arm starts (or restarts) the timer so Expired reports true after d has
// elapsed.
func (t *Timer) Arm(d time.Duration) {
	t.deadline = time.Now().Add(d)
	t.armed = true
}

// Cancel disarms the timer. Expired returns false until Arm is called again.
func (t *Timer) Cancel() { t.armed = false }

// Expired reports whether the timer is armed and its deadline has passed.
func (t *Timer) Expired() bool {
	return t.armed && !time.Now().Before(t.deadline)
}
