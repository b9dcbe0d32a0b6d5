package serialink

import (
	"errors"
	"fmt"
)

// LinkEndpoint owns a ByteChannel, a Decoder and a Timer, and implements the
// stop-and-wait link protocol: Open, Send, Receive and Close. It is not
// safe for concurrent use — the protocol is single-threaded cooperative by
// design (see DESIGN.md), and a session never has more than one operation
// in flight at a time.
type LinkEndpoint struct {
	ch   ByteChannel
	opts Options
	dec  *Decoder
	tmr  Timer
	cnt  counters

	sendSeq uint8
	expSeq  uint8
	closed  bool
}

// New returns a LinkEndpoint ready to Open over ch. WithRole should always
// be supplied; it defaults to Transmitter otherwise.
func New(ch ByteChannel, opts ...Option) *LinkEndpoint {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &LinkEndpoint{
		ch:   ch,
		opts: o,
		dec:  NewDecoder(o.MaxPayload),
	}
}

// Stats returns a snapshot of this endpoint's counters. Safe to call at any
// time, including before Open or after Close.
func (le *LinkEndpoint) Stats() Stats { return le.cnt.snapshot() }

func (le *LinkEndpoint) logf(msg string, kv ...interface{}) {
	if le.opts.Logger != nil {
		le.opts.Logger.Debugw(msg, kv...)
	}
}

func (le *LinkEndpoint) warnf(msg string, kv ...interface{}) {
	if le.opts.Logger != nil {
		le.opts.Logger.Warnw(msg, kv...)
	}
}

// writeFrame writes an already-encoded frame and updates frame/byte counters.
func (le *LinkEndpoint) writeFrame(frame []byte) error {
	if err := le.ch.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrChannel, err)
	}
	le.cnt.addFramesSent(le.opts.Metrics, len(frame))
	return nil
}

// readByte reads one byte, translating the channel's own per-read timeout
// into (0, false, nil) so callers can re-check their protocol Timer instead
// of treating every short wait as a protocol-level timeout.
func (le *LinkEndpoint) readByte() (b byte, ok bool, err error) {
	b, err = le.ch.ReadByte()
	if err == nil {
		return b, true, nil
	}
	if errors.Is(err, ErrTimeout) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("%w: %v", ErrChannel, err)
}

func (le *LinkEndpoint) bestEffortClose() {
	_ = le.ch.Close()
	le.closed = true
}

// Open establishes the session, synchronizing both endpoints.
func (le *LinkEndpoint) Open() error {
	if le.opts.Role == Transmitter {
		return le.openTransmitter()
	}
	return le.openReceiver()
}

func (le *LinkEndpoint) openTransmitter() error {
	set := Encode(AddrXmit, CtrlSET, nil)
	if err := le.writeFrame(set); err != nil {
		return err
	}
	le.tmr.Arm(le.opts.Timeout)
	retries := 0
	for {
		if le.tmr.Expired() {
			retries++
			le.cnt.addTimeout(le.opts.Metrics)
			if retries >= le.opts.MaxRetries {
				le.warnf("open: max retries exceeded waiting for UA")
				le.bestEffortClose()
				return ErrMaxRetries
			}
			le.cnt.addRetransmit(le.opts.Metrics)
			le.logf("open: retransmitting SET", "retry", retries)
			if err := le.writeFrame(set); err != nil {
				return err
			}
			le.tmr.Arm(le.opts.Timeout)
		}

		b, ok, err := le.readByte()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		frame, derr := le.dec.Step(b)
		if derr != nil || frame == nil {
			continue
		}
		if frame.Addr == AddrXmit && frame.Ctrl == CtrlUA {
			le.tmr.Cancel()
			le.sendSeq = 0
			le.logf("open: session established", "role", le.opts.Role.String())
			return nil
		}
	}
}

func (le *LinkEndpoint) openReceiver() error {
	for {
		b, ok, err := le.readByte()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		frame, derr := le.dec.Step(b)
		if derr != nil || frame == nil {
			continue
		}
		if frame.Addr == AddrXmit && frame.Ctrl == CtrlSET {
			ua := Encode(AddrXmit, CtrlUA, nil)
			if err := le.writeFrame(ua); err != nil {
				return err
			}
			le.expSeq = 0
			le.logf("open: session established", "role", le.opts.Role.String())
			return nil
		}
	}
}

// Send transmits payload as a single I-frame, retransmitting on REJ or
// timeout, and returns once the peer's matching RR is observed.
func (le *LinkEndpoint) Send(payload []byte) (int, error) {
	if le.closed {
		return 0, ErrClosed
	}
	if len(payload) > le.opts.MaxPayload {
		return 0, fmt.Errorf("%w: payload %d exceeds max %d", ErrProtocol, len(payload), le.opts.MaxPayload)
	}

	frame := Encode(AddrXmit, ctrlI(le.sendSeq), payload)
	if err := le.writeFrame(frame); err != nil {
		return 0, err
	}
	le.tmr.Arm(le.opts.Timeout)
	retries := 0

	for {
		if le.tmr.Expired() {
			retries++
			le.cnt.addTimeout(le.opts.Metrics)
			if retries >= le.opts.MaxRetries {
				le.warnf("send: max retries exceeded", "seq", le.sendSeq)
				le.bestEffortClose()
				return 0, ErrMaxRetries
			}
			le.cnt.addRetransmit(le.opts.Metrics)
			le.logf("send: retransmitting on timeout", "seq", le.sendSeq, "retry", retries)
			if err := le.writeFrame(frame); err != nil {
				return 0, err
			}
			le.tmr.Arm(le.opts.Timeout)
		}

		b, ok, err := le.readByte()
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		rf, derr := le.dec.Step(b)
		if derr != nil || rf == nil {
			continue
		}
		if rf.IsInformation() || rf.Addr != AddrXmit {
			continue
		}
		if seq, ok := rrSeq(rf.Ctrl); ok {
			if seq == 1-le.sendSeq {
				le.tmr.Cancel()
				le.sendSeq ^= 1
				return len(frame), nil
			}
			continue
		}
		if seq, ok := rejSeq(rf.Ctrl); ok && seq == le.sendSeq {
			le.cnt.addRejectRecv(le.opts.Metrics)
			le.logf("send: retransmitting on REJ", "seq", le.sendSeq)
			if err := le.writeFrame(frame); err != nil {
				return 0, err
			}
			retries = 0
			le.tmr.Arm(le.opts.Timeout)
		}
	}
}

// Receive delivers the next in-order I-frame's payload into buf.
//
// A return of (0, ErrRetry) means the caller should call Receive again
// immediately: either a duplicate frame was re-acknowledged, or a decode
// error caused a REJ to be sent. Both are part of ordinary operation, not
// failures.
func (le *LinkEndpoint) Receive(buf []byte) (int, error) {
	if le.closed {
		return 0, ErrClosed
	}
	for {
		b, ok, err := le.readByte()
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		frame, derr := le.dec.Step(b)
		if derr != nil {
			le.warnf("receive: decode error, sending REJ", "err", derr, "expected_seq", le.expSeq)
			rej := Encode(AddrXmit, ctrlREJ(le.expSeq), nil)
			le.cnt.addRejectSent(le.opts.Metrics)
			if werr := le.writeFrame(rej); werr != nil {
				return 0, werr
			}
			return 0, ErrRetry
		}
		if frame == nil {
			continue
		}
		if !frame.IsInformation() || frame.Addr != AddrXmit {
			continue
		}

		seq := iFrameSeq(frame.Ctrl)
		if seq != le.expSeq {
			// Duplicate: the peer never saw our previous RR. Re-send it
			// without re-delivering the payload.
			rr := Encode(AddrXmit, ctrlRR(le.expSeq), nil)
			if werr := le.writeFrame(rr); werr != nil {
				return 0, werr
			}
			return 0, ErrRetry
		}
		if len(frame.Payload) > len(buf) {
			return 0, fmt.Errorf("%w: payload %d exceeds buffer %d", ErrProtocol, len(frame.Payload), len(buf))
		}
		n := copy(buf, frame.Payload)
		rr := Encode(AddrXmit, ctrlRR(1-le.expSeq), nil)
		if werr := le.writeFrame(rr); werr != nil {
			return 0, werr
		}
		le.expSeq ^= 1
		le.cnt.addBytesDelivered(le.opts.Metrics, n)
		return n, nil
	}
}

// Close runs the three-way teardown handshake and releases the channel.
// If showStats is true, the final Stats snapshot is also logged.
func (le *LinkEndpoint) Close(showStats bool) (Stats, error) {
	if le.closed {
		return le.cnt.snapshot(), ErrClosed
	}
	var err error
	if le.opts.Role == Transmitter {
		err = le.closeTransmitter()
	} else {
		err = le.closeReceiver()
	}
	stats := le.cnt.snapshot()
	if showStats {
		if le.opts.Logger != nil {
			le.opts.Logger.Infow("session closed",
				"frames_sent", stats.FramesSent,
				"retransmits", stats.Retransmits,
				"rejects_sent", stats.RejectsSent,
				"rejects_received", stats.RejectsRecv,
				"timeouts", stats.Timeouts,
				"bytes_stuffed", stats.BytesStuffed,
				"bytes_delivered", stats.BytesDelivered,
			)
		}
	}
	return stats, err
}

func (le *LinkEndpoint) closeTransmitter() error {
	disc := Encode(AddrXmit, CtrlDISC, nil)
	if err := le.writeFrame(disc); err != nil {
		le.bestEffortClose()
		return err
	}
	le.tmr.Arm(le.opts.Timeout)
	retries := 0
	for {
		if le.tmr.Expired() {
			retries++
			le.cnt.addTimeout(le.opts.Metrics)
			if retries >= le.opts.MaxRetries {
				le.bestEffortClose()
				return ErrMaxRetries
			}
			le.cnt.addRetransmit(le.opts.Metrics)
			if err := le.writeFrame(disc); err != nil {
				le.bestEffortClose()
				return err
			}
			le.tmr.Arm(le.opts.Timeout)
		}
		b, ok, err := le.readByte()
		if err != nil {
			le.bestEffortClose()
			return err
		}
		if !ok {
			continue
		}
		frame, derr := le.dec.Step(b)
		if derr != nil || frame == nil {
			continue
		}
		if frame.Addr == AddrRecv && frame.Ctrl == CtrlDISC {
			ua := Encode(AddrRecv, CtrlUA, nil)
			werr := le.writeFrame(ua)
			le.bestEffortClose()
			return werr
		}
	}
}

func (le *LinkEndpoint) closeReceiver() error {
	for {
		b, ok, err := le.readByte()
		if err != nil {
			le.bestEffortClose()
			return err
		}
		if !ok {
			continue
		}
		frame, derr := le.dec.Step(b)
		if derr != nil || frame == nil {
			continue
		}
		if frame.Addr == AddrXmit && frame.Ctrl == CtrlDISC {
			break
		}
	}

	disc := Encode(AddrRecv, CtrlDISC, nil)
	if err := le.writeFrame(disc); err != nil {
		le.bestEffortClose()
		return err
	}
	le.tmr.Arm(le.opts.Timeout)
	retries := 0
	for {
		if le.tmr.Expired() {
			retries++
			le.cnt.addTimeout(le.opts.Metrics)
			if retries >= le.opts.MaxRetries {
				le.bestEffortClose()
				return ErrMaxRetries
			}
			le.cnt.addRetransmit(le.opts.Metrics)
			if err := le.writeFrame(disc); err != nil {
				le.bestEffortClose()
				return err
			}
			le.tmr.Arm(le.opts.Timeout)
		}
		b, ok, err := le.readByte()
		if err != nil {
			le.bestEffortClose()
			return err
		}
		if !ok {
			continue
		}
		frame, derr := le.dec.Step(b)
		if derr != nil || frame == nil {
			continue
		}
		if frame.Addr == AddrRecv && frame.Ctrl == CtrlUA {
			le.bestEffortClose()
			return nil
		}
	}
}
