package serialink

import "errors"

var (
	// ErrChannel reports that the underlying ByteChannel read or write failed.
	ErrChannel = errors.New("serialink: channel error")

	// ErrMaxRetries reports that Open, Send or Close gave up after the
	// configured number of timer expirations (see WithMaxRetries).
	ErrMaxRetries = errors.New("serialink: max retries exceeded")

	// ErrProtocol reports a payload the endpoint cannot carry: Send with a
	// payload larger than MaxPayload, or Receive with a frame whose payload
	// does not fit the caller's buffer. Decode errors (including an escape
	// octet followed by FLAG) are never surfaced as ErrProtocol: Receive
	// answers them with a REJ and ErrRetry. Frames of an unexpected type are
	// ignored rather than reported.
	ErrProtocol = errors.New("serialink: protocol violation")

	// ErrTimeout is returned by a ByteChannel's ReadByte when its per-read
	// interval passes with no byte. LinkEndpoint treats it as "no byte yet"
	// and re-checks its Timer; Open/Send/Receive/Close never return it.
	ErrTimeout = errors.New("serialink: timeout")

	// ErrRetry is returned by Receive when the caller should call Receive
	// again: the frame just processed was a duplicate or failed to decode
	// (header, BCC2, escape or size error), and the appropriate RR/REJ has
	// already been sent.
	ErrRetry = errors.New("serialink: retry")

	// ErrClosed reports that the endpoint's ByteChannel is already closed.
	ErrClosed = errors.New("serialink: endpoint already closed")
)
