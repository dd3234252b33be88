// Package metrics wraps the ambient Prometheus counters this driver
// exposes: messages sent/received by kind, bytes transferred by direction,
// and COPY rows handled. Unlike a long-running server's metrics, a driver
// embedded in someone else's process should never reach for the global
// registry on its own — Recorder takes a prometheus.Registerer from the
// caller and registers into it, so multiple Conns in one process can share
// one Recorder, and a caller that doesn't want metrics at all can simply
// not construct one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pgwire"

// Recorder is the metrics surface protocol.Conn reports into. A nil
// *Recorder is valid and makes every method a no-op, so instrumentation is
// always optional at the call site.
type Recorder struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	copyRows         *prometheus.CounterVec
}

// NewRecorder constructs a Recorder and registers its collectors into reg.
// Passing the same reg to two Recorders will fail at registration time
// with an AlreadyRegisteredError, same as any other Prometheus collector.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Frontend messages sent, by message kind.",
		}, []string{"kind"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Backend messages received, by message kind.",
		}, []string{"kind"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the wire.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from the wire.",
		}),
		copyRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_rows_total",
			Help:      "Rows transferred through the COPY sub-protocol, by direction.",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{r.messagesSent, r.messagesReceived, r.bytesSent, r.bytesReceived, r.copyRows} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MessageSent records one frontend message of the given kind (e.g. "Q",
// "P", "B") having been written.
func (r *Recorder) MessageSent(kind byte) {
	if r == nil {
		return
	}
	r.messagesSent.WithLabelValues(string(kind)).Inc()
}

// MessageReceived records one backend message of the given kind having
// been read.
func (r *Recorder) MessageReceived(kind byte) {
	if r == nil {
		return
	}
	r.messagesReceived.WithLabelValues(string(kind)).Inc()
}

// BytesSent records n additional bytes written to the wire. Designed to be
// passed directly as one of transport.Conn.SetByteCounters' hooks.
func (r *Recorder) BytesSent(n int) {
	if r == nil {
		return
	}
	r.bytesSent.Add(float64(n))
}

// BytesReceived records n additional bytes read from the wire. Designed to
// be passed directly as one of transport.Conn.SetByteCounters' hooks.
func (r *Recorder) BytesReceived(n int) {
	if r == nil {
		return
	}
	r.bytesReceived.Add(float64(n))
}

// CopyRows records n additional rows transferred in the given direction
// ("in" or "out").
func (r *Recorder) CopyRows(direction string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.copyRows.WithLabelValues(direction).Add(float64(n))
}
