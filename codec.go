package serialink

import "errors"

// Decode-time signals. Each is recoverable by itself: the decoder has
// already reset to its synchronizing state by the time it returns one of
// these, so the caller only needs to decide what, if anything, to send back
// to the peer (see LinkEndpoint.Receive).
var (
	ErrHeaderCorrupt   = errors.New("serialink: header BCC1 mismatch")
	ErrBcc2Mismatch    = errors.New("serialink: payload BCC2 mismatch")
	ErrOversize        = errors.New("serialink: frame exceeds max payload")
	ErrEscapeViolation = errors.New("serialink: escape octet followed by FLAG")
)

// Encode renders a logical frame (address, control, optional payload) as a
// byte-stuffed wire frame bracketed by FLAG octets.
//
// BCC2 is computed over the unstuffed payload and is itself subject to
// stuffing, exactly like every other payload byte — it must never be
// computed over the already-stuffed stream. An I-frame control octet always
// gets a payload region and BCC2, even when payload is nil or empty.
func Encode(addr, ctrl byte, payload []byte) []byte {
	out := make([]byte, 0, 6+2*len(payload)+2)
	out = append(out, Flag, addr, ctrl, addr^ctrl)
	if payload != nil || isIFrame(ctrl) {
		bcc2 := byte(0)
		for _, b := range payload {
			bcc2 ^= b
		}
		out = appendStuffed(out, payload)
		out = appendStuffed(out, []byte{bcc2})
	}
	out = append(out, Flag)
	return out
}

func appendStuffed(dst []byte, src []byte) []byte {
	for _, b := range src {
		if b == Flag || b == Esc {
			dst = append(dst, Esc, b^EscXOR)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// decodeState is the byte-driven decoder state machine described in the
// spec's FrameCodec section.
type decodeState int

const (
	stateStart decodeState = iota
	stateFlagRcv
	stateARcv
	stateCRcv
	stateData
)

// Decoder drives the FrameCodec decode state machine one byte at a time.
// It tolerates arbitrary garbage between frames: any byte that does not fit
// the grammar resets the machine to Start (or FlagRcv on FLAG), so it
// resynchronizes after line noise or a partial frame without external help.
type Decoder struct {
	state   decodeState
	maxPay  int
	addr    byte
	ctrl    byte
	escape  bool
	payload []byte
	oversz  bool
}

// NewDecoder returns a Decoder that rejects any frame whose pre-BCC2
// payload exceeds maxPayload bytes. maxPayload <= 0 selects DefaultMaxPayload.
func NewDecoder(maxPayload int) *Decoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Decoder{maxPay: maxPayload}
}

// Reset returns the decoder to its initial synchronizing state.
func (d *Decoder) Reset() {
	d.state = stateStart
	d.payload = d.payload[:0]
	d.escape = false
	d.oversz = false
}

// Step feeds one byte to the decoder.
//
// Exactly one of three things happens per call:
//   - frame is non-nil and err is nil: a complete, verified frame was decoded.
//   - err is non-nil: a decode error occurred (ErrHeaderCorrupt,
//     ErrBcc2Mismatch, ErrOversize or ErrEscapeViolation); the decoder has
//     already resynchronized.
//   - both are nil: the byte was consumed as part of an in-progress frame.
func (d *Decoder) Step(b byte) (frame *Frame, err error) {
	switch d.state {
	case stateStart:
		if b == Flag {
			d.state = stateFlagRcv
		}
		return nil, nil

	case stateFlagRcv:
		switch {
		case b == Flag:
			// stay; consecutive flags are allowed.
		case b == AddrXmit || b == AddrRecv:
			d.addr = b
			d.state = stateARcv
		default:
			d.state = stateStart
		}
		return nil, nil

	case stateARcv:
		if b == Flag {
			d.state = stateFlagRcv
			return nil, nil
		}
		if isKnownControl(b) {
			d.ctrl = b
			d.state = stateCRcv
			return nil, nil
		}
		d.state = stateStart
		return nil, nil

	case stateCRcv:
		if b == Flag {
			d.state = stateFlagRcv
			return nil, nil
		}
		if b != d.addr^d.ctrl {
			d.state = stateStart
			return nil, ErrHeaderCorrupt
		}
		if isIFrame(d.ctrl) {
			d.payload = d.payload[:0]
			d.escape = false
			d.oversz = false
			d.state = stateData
			return nil, nil
		}
		d.state = stateStart
		return &Frame{Addr: d.addr, Ctrl: d.ctrl}, nil

	case stateData:
		return d.stepData(b)
	}
	// unreachable
	d.state = stateStart
	return nil, nil
}

func (d *Decoder) stepData(b byte) (*Frame, error) {
	if d.escape {
		d.escape = false
		if b == Flag {
			d.state = stateStart
			return nil, ErrEscapeViolation
		}
		return d.appendDataByte(b ^ EscXOR)
	}
	switch b {
	case Esc:
		d.escape = true
		return nil, nil
	case Flag:
		d.state = stateStart
		if d.oversz {
			return nil, ErrOversize
		}
		if len(d.payload) == 0 {
			return nil, ErrHeaderCorrupt
		}
		payload := d.payload[:len(d.payload)-1]
		bcc2 := d.payload[len(d.payload)-1]
		want := byte(0)
		for _, pb := range payload {
			want ^= pb
		}
		if want != bcc2 {
			return nil, ErrBcc2Mismatch
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return &Frame{Addr: d.addr, Ctrl: d.ctrl, Payload: out}, nil
	default:
		return d.appendDataByte(b)
	}
}

func (d *Decoder) appendDataByte(b byte) (*Frame, error) {
	if d.oversz {
		return nil, nil
	}
	// +1 budget reserved for the trailing BCC2 byte.
	if len(d.payload) >= d.maxPay+1 {
		d.oversz = true
		return nil, nil
	}
	d.payload = append(d.payload, b)
	return nil, nil
}

func isKnownControl(c byte) bool {
	switch c {
	case CtrlSET, CtrlUA, CtrlRR0, CtrlRR1, CtrlREJ0, CtrlREJ1, CtrlDISC:
		return true
	default:
		return isIFrame(c)
	}
}
