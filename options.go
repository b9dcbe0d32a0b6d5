package serialink

import (
	"time"

	"go.uber.org/zap"
)

// Role distinguishes the two peers of a session. A and address values in
// the wire protocol are role-relative, not peer-relative: the transmitter
// role sends SET/DISC and every I-frame; the receiver role only answers.
type Role uint8

const (
	Transmitter Role = iota
	Receiver
)

func (r Role) String() string {
	if r == Receiver {
		return "receiver"
	}
	return "transmitter"
}

// Options configures a LinkEndpoint.
type Options struct {
	Role       Role
	Timeout    time.Duration
	MaxRetries int
	MaxPayload int

	// Logger receives structured events for session establishment,
	// retransmissions (timeout- and REJ-driven), REJs sent, retry
	// exhaustion and the Close summary. Individual frame writes are not
	// logged. A nil Logger disables logging.
	Logger *zap.SugaredLogger

	// Metrics, when non-nil, receives a live view of the endpoint's
	// counters as Prometheus collectors. A nil Metrics still leaves Stats
	// available from Close; it just isn't exported.
	Metrics *Metrics
}

var defaultOptions = Options{
	Role:       Transmitter,
	Timeout:    3 * time.Second,
	MaxRetries: 3,
	MaxPayload: DefaultMaxPayload,
}

// Option configures a LinkEndpoint at construction time.
type Option func(*Options)

// WithRole sets the endpoint's role. Required; there is no sane default
// shared by both peers of a session.
func WithRole(r Role) Option { return func(o *Options) { o.Role = r } }

// WithTimeout sets the per-wait timeout used by Open, Send and Close.
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// WithMaxRetries sets the number of timer expirations after which Open, Send
// or Close surface ErrMaxRetries. Each expiration before the MaxRetries-th
// triggers one retransmission, so at most MaxRetries-1 timeout-driven
// retransmissions are made.
func WithMaxRetries(n int) Option { return func(o *Options) { o.MaxRetries = n } }

// WithMaxPayload caps the unstuffed I-frame payload size this endpoint will
// emit or accept.
func WithMaxPayload(n int) Option { return func(o *Options) { o.MaxPayload = n } }

// WithLogger attaches structured logging to the endpoint.
func WithLogger(l *zap.SugaredLogger) Option { return func(o *Options) { o.Logger = l } }

// WithMetrics attaches a Prometheus metrics set to the endpoint.
func WithMetrics(m *Metrics) Option { return func(o *Options) { o.Metrics = m } }
