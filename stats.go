package serialink

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats accumulates the counters a LinkEndpoint reports at Close. Every
// field is monotonically non-decreasing for the lifetime of the endpoint;
// the exact accounting of "bytes" is left to the implementation (the spec
// only requires the totals to be monotonic and non-negative).
type Stats struct {
	FramesSent     uint64
	Retransmits    uint64
	RejectsSent    uint64
	RejectsRecv    uint64
	Timeouts       uint64
	BytesStuffed   uint64
	BytesDelivered uint64
}

// counters is the mutable, concurrency-safe home for a live Stats; snapshot
// copies it out as a value.
type counters struct {
	framesSent     atomic.Uint64
	retransmits    atomic.Uint64
	rejectsSent    atomic.Uint64
	rejectsRecv    atomic.Uint64
	timeouts       atomic.Uint64
	bytesStuffed   atomic.Uint64
	bytesDelivered atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesSent:     c.framesSent.Load(),
		Retransmits:    c.retransmits.Load(),
		RejectsSent:    c.rejectsSent.Load(),
		RejectsRecv:    c.rejectsRecv.Load(),
		Timeouts:       c.timeouts.Load(),
		BytesStuffed:   c.bytesStuffed.Load(),
		BytesDelivered: c.bytesDelivered.Load(),
	}
}

// Metrics exports a LinkEndpoint's counters as Prometheus collectors. It is
// optional: an endpoint constructed without WithMetrics still tracks Stats
// internally, it just has nothing registered with a global registry.
type Metrics struct {
	framesSent     prometheus.Counter
	retransmits    prometheus.Counter
	rejectsSent    prometheus.Counter
	rejectsRecv    prometheus.Counter
	timeouts       prometheus.Counter
	bytesStuffed   prometheus.Counter
	bytesDelivered prometheus.Counter
}

// NewMetrics creates and registers the serialink Prometheus metrics.
// labels (e.g. {"port": "/dev/ttyUSB0", "role": "transmitter"}) is applied
// as constant labels to every collector so multiple endpoints in one
// process don't collide.
func NewMetrics(labels prometheus.Labels) *Metrics {
	return &Metrics{
		framesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_frames_sent_total",
			Help:        "Total I-frames and supervisory frames emitted.",
			ConstLabels: labels,
		}),
		retransmits: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_retransmits_total",
			Help:        "Total timeout-driven frame retransmissions.",
			ConstLabels: labels,
		}),
		rejectsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_rejects_sent_total",
			Help:        "Total REJ frames sent by this endpoint's receive path.",
			ConstLabels: labels,
		}),
		rejectsRecv: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_rejects_received_total",
			Help:        "Total REJ frames received by this endpoint's send path.",
			ConstLabels: labels,
		}),
		timeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_timeouts_total",
			Help:        "Total Timer expirations observed.",
			ConstLabels: labels,
		}),
		bytesStuffed: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_bytes_stuffed_total",
			Help:        "Total bytes written to the channel, after byte stuffing.",
			ConstLabels: labels,
		}),
		bytesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "serialink_bytes_delivered_total",
			Help:        "Total application payload bytes delivered upward.",
			ConstLabels: labels,
		}),
	}
}

func (c *counters) addFramesSent(m *Metrics, stuffedLen int) {
	c.framesSent.Add(1)
	c.bytesStuffed.Add(uint64(stuffedLen))
	if m != nil {
		m.framesSent.Inc()
		m.bytesStuffed.Add(float64(stuffedLen))
	}
}

func (c *counters) addRetransmit(m *Metrics) {
	c.retransmits.Add(1)
	if m != nil {
		m.retransmits.Inc()
	}
}

func (c *counters) addRejectSent(m *Metrics) {
	c.rejectsSent.Add(1)
	if m != nil {
		m.rejectsSent.Inc()
	}
}

func (c *counters) addRejectRecv(m *Metrics) {
	c.rejectsRecv.Add(1)
	if m != nil {
		m.rejectsRecv.Inc()
	}
}

func (c *counters) addTimeout(m *Metrics) {
	c.timeouts.Add(1)
	if m != nil {
		m.timeouts.Inc()
	}
}

func (c *counters) addBytesDelivered(m *Metrics, n int) {
	c.bytesDelivered.Add(uint64(n))
	if m != nil {
		m.bytesDelivered.Add(float64(n))
	}
}
