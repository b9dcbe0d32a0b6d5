package serialink_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/serialink-go/serialink"
)

func decodeAll(t *testing.T, dec *serialink.Decoder, wire []byte) (*serialink.Frame, error) {
	t.Helper()
	for _, b := range wire {
		frame, err := dec.Step(b)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
	return nil, errors.New("frame never completed")
}

func TestEncodeDecodeRoundTrip_SupervisoryFrame(t *testing.T) {
	wire := serialink.Encode(serialink.AddrXmit, serialink.CtrlUA, nil)
	if len(wire) != 5 {
		t.Fatalf("supervisory frame len=%d want 5", len(wire))
	}
	dec := serialink.NewDecoder(0)
	frame, err := decodeAll(t, dec, wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Addr != serialink.AddrXmit || frame.Ctrl != serialink.CtrlUA || frame.Payload != nil {
		t.Fatalf("got %+v", frame)
	}
}

func TestEncodeDecodeRoundTrip_Payloads(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("HELLO\n"),
		{serialink.Flag, serialink.Flag, serialink.Flag},
		{serialink.Esc, serialink.Esc},
		{serialink.Flag ^ 0x20},
		{serialink.Flag, serialink.Esc, serialink.Flag},
		bytes.Repeat([]byte{0xAA}, 995),
	}
	for i, payload := range cases {
		wire := serialink.Encode(serialink.AddrXmit, 0x00, payload)
		dec := serialink.NewDecoder(1000)
		frame, err := decodeAll(t, dec, wire)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if payload == nil {
			payload = []byte{}
		}
		if !bytes.Equal(frame.Payload, payload) {
			t.Fatalf("case %d: got %x want %x", i, frame.Payload, payload)
		}
	}
}

// S5: file of 3 bytes 7E 7D 7E produces the documented stuffed wire bytes.
func TestScenarioS5_ByteStuffedPayload(t *testing.T) {
	payload := []byte{0x7E, 0x7D, 0x7E}
	wire := serialink.Encode(serialink.AddrXmit, 0x00, payload)

	// header: FLAG A C BCC1
	wantHeader := []byte{serialink.Flag, serialink.AddrXmit, 0x00, serialink.AddrXmit ^ 0x00}
	if !bytes.Equal(wire[:4], wantHeader) {
		t.Fatalf("header = %x want %x", wire[:4], wantHeader)
	}
	// stuffed payload+BCC2: 7D 5E 7D 5D 7D 5E 7D 5D, then trailing FLAG.
	wantBody := []byte{0x7D, 0x5E, 0x7D, 0x5D, 0x7D, 0x5E, 0x7D, 0x5D}
	gotBody := wire[4 : len(wire)-1]
	if !bytes.Equal(gotBody, wantBody) {
		t.Fatalf("stuffed body = %x want %x", gotBody, wantBody)
	}
	if wire[len(wire)-1] != serialink.Flag {
		t.Fatalf("trailing byte = %x want FLAG", wire[len(wire)-1])
	}

	dec := serialink.NewDecoder(0)
	frame, err := decodeAll(t, dec, wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("decoded payload = %x want %x", frame.Payload, payload)
	}
}

// Property 5: resync. Arbitrary garbage prepended to a valid frame does not
// prevent that frame from decoding.
func TestResyncAfterGarbage(t *testing.T) {
	garbage := []byte{0x01, 0x7E, 0x00, 0xFF, serialink.Flag, 0x99}
	valid := serialink.Encode(serialink.AddrXmit, serialink.CtrlRR0, nil)

	dec := serialink.NewDecoder(0)
	wire := append(append([]byte{}, garbage...), valid...)
	frame, err := decodeAll(t, dec, wire)
	if err != nil {
		t.Fatalf("decode after garbage: %v", err)
	}
	if frame.Ctrl != serialink.CtrlRR0 {
		t.Fatalf("got ctrl %x want RR0", frame.Ctrl)
	}
}

// Property 6: single-bit corruption of the (unstuffed) BCC2 byte is caught
// by the BCC2 check.
func TestBCC2DetectsSingleBitCorruption(t *testing.T) {
	payload := []byte("HELLO!")
	wire := serialink.Encode(serialink.AddrXmit, 0x00, payload)
	wire[len(wire)-2] ^= 0x01 // flip a bit in the stuffed BCC2 byte

	dec := serialink.NewDecoder(0)
	for _, b := range wire {
		_, err := dec.Step(b)
		if err != nil {
			if !errors.Is(err, serialink.ErrBcc2Mismatch) {
				t.Fatalf("got err %v want ErrBcc2Mismatch", err)
			}
			return
		}
	}
	t.Fatal("expected ErrBcc2Mismatch, decoder never reported one")
}

func TestOversizePayloadRejected(t *testing.T) {
	payload := bytes.Repeat([]byte{0x41}, 50)
	wire := serialink.Encode(serialink.AddrXmit, 0x00, payload)

	dec := serialink.NewDecoder(10)
	for _, b := range wire {
		_, err := dec.Step(b)
		if err != nil {
			if !errors.Is(err, serialink.ErrOversize) {
				t.Fatalf("got err %v want ErrOversize", err)
			}
			return
		}
	}
	t.Fatal("expected ErrOversize")
}

func TestEscapeFollowedByFlagIsViolation(t *testing.T) {
	dec := serialink.NewDecoder(0)
	header := []byte{serialink.Flag, serialink.AddrXmit, 0x00, serialink.AddrXmit}
	for _, b := range header {
		if _, err := dec.Step(b); err != nil {
			t.Fatalf("unexpected err on header: %v", err)
		}
	}
	if _, err := dec.Step(serialink.Esc); err != nil {
		t.Fatalf("unexpected err on ESC: %v", err)
	}
	_, err := dec.Step(serialink.Flag)
	if !errors.Is(err, serialink.ErrEscapeViolation) {
		t.Fatalf("got %v want ErrEscapeViolation", err)
	}
}

func TestHeaderCorruptionResyncs(t *testing.T) {
	dec := serialink.NewDecoder(0)
	bad := []byte{serialink.Flag, serialink.AddrXmit, serialink.CtrlUA, 0x00 /* wrong BCC1 */}
	var sawErr error
	for _, b := range bad {
		_, err := dec.Step(b)
		if err != nil {
			sawErr = err
		}
	}
	if !errors.Is(sawErr, serialink.ErrHeaderCorrupt) {
		t.Fatalf("got %v want ErrHeaderCorrupt", sawErr)
	}

	// Decoder should still be able to decode the next valid frame.
	valid := serialink.Encode(serialink.AddrXmit, serialink.CtrlUA, nil)
	frame, err := decodeAll(t, dec, valid)
	if err != nil {
		t.Fatalf("decode after resync: %v", err)
	}
	if frame.Ctrl != serialink.CtrlUA {
		t.Fatalf("got %x want UA", frame.Ctrl)
	}
}
