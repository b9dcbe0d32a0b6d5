package serialink_test

import (
	"errors"
	"time"

	"github.com/serialink-go/serialink"
)

// scriptedChannel is a deterministic ByteChannel fake modeled on the
// teacher's scriptedReader: a fixed sequence of read outcomes (byte,
// timeout, or error) plus a record of everything written to it. It drives
// unit tests for a single LinkEndpoint without a live peer on the other
// end of the wire.
type scriptedChannel struct {
	events []scriptEvent
	idx    int
	writes [][]byte
	closed bool
}

type scriptEvent struct {
	b       byte
	timeout bool
	err     error
}

func (s *scriptedChannel) queueBytes(bs ...byte) {
	for _, b := range bs {
		s.events = append(s.events, scriptEvent{b: b})
	}
}

func (s *scriptedChannel) queueFrame(frame []byte) { s.queueBytes(frame...) }

func (s *scriptedChannel) queueTimeout(n int) {
	for i := 0; i < n; i++ {
		s.events = append(s.events, scriptEvent{timeout: true})
	}
}

func (s *scriptedChannel) ReadByte() (byte, error) {
	if s.idx >= len(s.events) {
		// Script exhausted: behave like an idle line.
		return 0, serialink.ErrTimeout
	}
	e := s.events[s.idx]
	s.idx++
	if e.err != nil {
		return 0, e.err
	}
	if e.timeout {
		return 0, serialink.ErrTimeout
	}
	return e.b, nil
}

func (s *scriptedChannel) Write(buf []byte) error {
	if s.closed {
		return errors.New("scriptedChannel: write after close")
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	s.writes = append(s.writes, cp)
	return nil
}

func (s *scriptedChannel) Close() error {
	s.closed = true
	return nil
}

// halfDuplex is one direction of an in-memory wire: a byte queue with a
// bounded per-read wait, used to build a live two-endpoint duplexPipe for
// the end-to-end scenario tests.
type halfDuplex struct {
	ch        chan byte
	closed    chan struct{}
	closeOnce bool
}

func newHalfDuplex() *halfDuplex {
	return &halfDuplex{ch: make(chan byte, 4096), closed: make(chan struct{})}
}

func (h *halfDuplex) readByte(timeout time.Duration) (byte, error) {
	select {
	case b := <-h.ch:
		return b, nil
	case <-h.closed:
		// Bytes written before the peer closed are still on the wire.
		select {
		case b := <-h.ch:
			return b, nil
		default:
		}
		return 0, errors.New("halfDuplex: closed")
	case <-time.After(timeout):
		return 0, serialink.ErrTimeout
	}
}

func (h *halfDuplex) write(buf []byte) {
	for _, b := range buf {
		h.ch <- b
	}
}

func (h *halfDuplex) close() {
	if !h.closeOnce {
		h.closeOnce = true
		close(h.closed)
	}
}

// faultFunc mutates or drops a single wire byte given its 0-based index on
// the direction it is installed on. Returning drop=true removes the byte
// from the wire entirely (simulating line noise eating it).
type faultFunc func(idx int, b byte) (out byte, drop bool)

// duplexPipe connects two endChannel fakes back to back: bytes written to
// the transmitter side arrive (subject to an optional fault) on the
// receiver side's read, and vice versa.
type duplexPipe struct {
	txToRx *halfDuplex
	rxToTx *halfDuplex
}

func newDuplexPipe() *duplexPipe {
	return &duplexPipe{txToRx: newHalfDuplex(), rxToTx: newHalfDuplex()}
}

// endChannel is one endpoint's view of a duplexPipe: it writes onto `out`
// (optionally faulted) and reads from `in`.
type endChannel struct {
	out     *halfDuplex
	in      *halfDuplex
	fault   faultFunc
	written int
	timeout time.Duration
}

func (p *duplexPipe) txChannel(fault faultFunc) *endChannel {
	return &endChannel{out: p.txToRx, in: p.rxToTx, fault: fault, timeout: 50 * time.Millisecond}
}

func (p *duplexPipe) rxChannel(fault faultFunc) *endChannel {
	return &endChannel{out: p.rxToTx, in: p.txToRx, fault: fault, timeout: 50 * time.Millisecond}
}

func (e *endChannel) ReadByte() (byte, error) { return e.in.readByte(e.timeout) }

func (e *endChannel) Write(buf []byte) error {
	if e.fault == nil {
		e.out.write(buf)
		e.written += len(buf)
		return nil
	}
	for _, b := range buf {
		out, drop := e.fault(e.written, b)
		e.written++
		if !drop {
			e.out.write([]byte{out})
		}
	}
	return nil
}

func (e *endChannel) Close() error {
	e.out.close()
	return nil
}

// dropByteAt drops exactly the wire byte at index idx (0-based, across the
// whole session on that direction), passing every other byte through.
func dropByteAt(idx int) faultFunc {
	return func(i int, b byte) (byte, bool) {
		return b, i == idx
	}
}

// flipByteAt XORs the byte at wire index idx with mask, passing every other
// byte through unchanged.
func flipByteAt(idx int, mask byte) faultFunc {
	return func(i int, b byte) (byte, bool) {
		if i == idx {
			return b ^ mask, false
		}
		return b, false
	}
}
