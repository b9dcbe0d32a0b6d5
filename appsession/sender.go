package appsession

import (
	"fmt"
	"io"

	"github.com/serialink-go/serialink"
)

// Sender streams a file over a LinkEndpoint already open in the
// Transmitter role: a START packet, a run of DATA packets, an END packet,
// then a session close.
type Sender struct {
	le   *serialink.LinkEndpoint
	opts Options
}

// NewSender wraps an already-opened transmitter-role LinkEndpoint.
func NewSender(le *serialink.LinkEndpoint, opts ...Option) *Sender {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Sender{le: le, opts: o}
}

func (s *Sender) logf(msg string, kv ...interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Infow(msg, kv...)
	}
}

// Send reads r to exhaustion, streaming it as fileSize bytes under
// fileName. r must yield exactly fileSize bytes; the caller is responsible
// for that invariant (e.g. by opening the file and using its stat size).
func (s *Sender) Send(r io.Reader, fileSize uint32, fileName string) error {
	s.logf("session start", "file", fileName, "size", fileSize)

	meta := encodeMetaPacket(PacketStart, fileSize, fileName)
	if _, err := s.le.Send(meta); err != nil {
		return fmt.Errorf("appsession: send START: %w", err)
	}

	chunkSize := maxChunkSize(s.opts.MaxPayload)
	chunk := make([]byte, chunkSize)
	var sent uint32
	var chunkIndex int
	for sent < fileSize {
		want := chunkSize
		if remain := int(fileSize - sent); remain < want {
			want = remain
		}
		n, err := io.ReadFull(r, chunk[:want])
		if err != nil {
			return fmt.Errorf("appsession: reading file data: %w", err)
		}
		appSeq := uint8(chunkIndex % 100)
		packet := encodeDataPacket(appSeq, chunk[:n])
		if _, err := s.le.Send(packet); err != nil {
			return fmt.Errorf("appsession: send DATA: %w", err)
		}
		sent += uint32(n)
		chunkIndex++
	}

	end := encodeMetaPacket(PacketEnd, fileSize, fileName)
	if _, err := s.le.Send(end); err != nil {
		return fmt.Errorf("appsession: send END: %w", err)
	}

	stats, err := s.le.Close(true)
	s.logf("session end", "bytes_delivered", stats.BytesDelivered, "frames_sent", stats.FramesSent)
	if err != nil {
		return fmt.Errorf("appsession: close: %w", err)
	}
	return nil
}
