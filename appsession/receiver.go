package appsession

import (
	"errors"
	"fmt"
	"io"

	"github.com/serialink-go/serialink"
)

// Receiver reassembles a file from a LinkEndpoint already open in the
// Receiver role: a START packet, a run of in-order DATA packets verified
// against a local app_seq counter, an END packet, then a session close.
type Receiver struct {
	le   *serialink.LinkEndpoint
	opts Options
	buf  []byte
}

// NewReceiver wraps an already-opened receiver-role LinkEndpoint.
func NewReceiver(le *serialink.LinkEndpoint, opts ...Option) *Receiver {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Receiver{le: le, opts: o, buf: make([]byte, o.MaxPayload+32)}
}

func (r *Receiver) logf(msg string, kv ...interface{}) {
	if r.opts.Logger != nil {
		r.opts.Logger.Infow(msg, kv...)
	}
}

// receivePacket drives LinkEndpoint.Receive, silently looping past the
// duplicate/decode-error Retry signal — that signal is ordinary link-layer
// bookkeeping, not something AppSession needs to see.
func (r *Receiver) receivePacket() ([]byte, error) {
	for {
		n, err := r.le.Receive(r.buf)
		if errors.Is(err, serialink.ErrRetry) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, r.buf[:n])
		return out, nil
	}
}

// Receive writes the reassembled file to w, returning the file name carried
// in the START/END metadata (which w's caller is free to ignore).
func (r *Receiver) Receive(w io.Writer) (fileName string, err error) {
	start, err := r.receivePacket()
	if err != nil {
		return "", fmt.Errorf("appsession: receive START: %w", err)
	}
	fileSize, fileName, err := decodeMetaPacket(start, PacketStart)
	if err != nil {
		return "", err
	}
	r.logf("session start", "file", fileName, "size", fileSize)

	var written uint32
	var expectSeq int
	for written < fileSize {
		packet, err := r.receivePacket()
		if err != nil {
			return "", fmt.Errorf("appsession: receive DATA: %w", err)
		}
		appSeq, data, err := decodeDataPacket(packet)
		if err != nil {
			return "", err
		}
		if int(appSeq) != expectSeq%100 {
			return "", fmt.Errorf("%w: got %d want %d", ErrSequenceMismatch, appSeq, expectSeq%100)
		}
		if written+uint32(len(data)) > fileSize {
			return "", fmt.Errorf("%w: %d declared bytes remaining, got %d more", ErrSizeOverflow, fileSize-written, len(data))
		}
		if _, werr := w.Write(data); werr != nil {
			return "", fmt.Errorf("appsession: writing output: %w", werr)
		}
		written += uint32(len(data))
		expectSeq++
	}

	end, err := r.receivePacket()
	if err != nil {
		return "", fmt.Errorf("appsession: receive END: %w", err)
	}
	if _, _, err := decodeMetaPacket(end, PacketEnd); err != nil {
		return "", err
	}

	stats, err := r.le.Close(true)
	r.logf("session end", "bytes_delivered", stats.BytesDelivered, "frames_sent", stats.FramesSent)
	if err != nil {
		return "", fmt.Errorf("appsession: close: %w", err)
	}
	return fileName, nil
}
