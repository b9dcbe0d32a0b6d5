package appsession

import (
	"go.uber.org/zap"

	"github.com/serialink-go/serialink"
)

// Options configures a Sender or Receiver.
type Options struct {
	// MaxPayload must match the LinkEndpoint's own WithMaxPayload so chunk
	// sizing stays consistent with what the link layer will accept.
	MaxPayload int

	// Logger receives session-level events (start, end, byte counts). A
	// nil Logger disables logging.
	Logger *zap.SugaredLogger
}

var defaultOptions = Options{
	MaxPayload: serialink.DefaultMaxPayload,
}

// Option configures a Sender or Receiver at construction time.
type Option func(*Options)

// WithMaxPayload sets the chunk-sizing bound; must match the underlying
// LinkEndpoint's own configured MaxPayload.
func WithMaxPayload(n int) Option { return func(o *Options) { o.MaxPayload = n } }

// WithLogger attaches structured logging to the session.
func WithLogger(l *zap.SugaredLogger) Option { return func(o *Options) { o.Logger = l } }
