package metrics

import "sync"

// Default metrics for the connection core. Initialized by Init().
//
// Label conventions: proto values are the lowercase tag names (http,
// https, ws, wss); status values are the receive pipeline result names
// (ok, postpone, drop, bad); reason values for send errors are broken,
// queue_full, oom.
var (
	// ConnectionsActive gauges currently established connections.
	// Labels: proto
	ConnectionsActive *Gauge

	// ConnectionsTotal counts accepted connections.
	// Labels: proto
	ConnectionsTotal *Counter

	// RecvBuffersTotal counts inbound buffers walked by the pipeline.
	// Labels: proto
	RecvBuffersTotal *Counter

	// RecvBytesTotal counts inbound payload bytes.
	// Labels: proto
	RecvBytesTotal *Counter

	// RecvStatusTotal counts pipeline-level receive results.
	// Labels: status
	RecvStatusTotal *Counter

	// MessagesDroppedTotal counts messages rejected at admission.
	// Labels: proto
	MessagesDroppedTotal *Counter

	// SendErrorsTotal counts failed sends by reason.
	// Labels: reason
	SendErrorsTotal *Counter

	// ConnDurationSeconds tracks connection lifetimes.
	ConnDurationSeconds *Histogram

	defaultRegistry *Registry
	initOnce        sync.Once
)

// Init creates the default registry and metrics. Safe to call more than
// once; only the first call takes effect.
func Init() *Registry {
	initOnce.Do(func() {
		r := NewRegistry()
		ConnectionsActive, _ = r.NewGauge("relayd_connections_active",
			"Currently established connections.", "proto")
		ConnectionsTotal, _ = r.NewCounter("relayd_connections_total",
			"Accepted connections.", "proto")
		RecvBuffersTotal, _ = r.NewCounter("relayd_recv_buffers_total",
			"Inbound buffers processed by the receive pipeline.", "proto")
		RecvBytesTotal, _ = r.NewCounter("relayd_recv_bytes_total",
			"Inbound payload bytes.", "proto")
		RecvStatusTotal, _ = r.NewCounter("relayd_recv_status_total",
			"Receive pipeline results.", "status")
		MessagesDroppedTotal, _ = r.NewCounter("relayd_messages_dropped_total",
			"Messages rejected at admission.", "proto")
		SendErrorsTotal, _ = r.NewCounter("relayd_send_errors_total",
			"Failed sends by reason.", "reason")
		ConnDurationSeconds, _ = r.NewHistogram("relayd_conn_duration_seconds",
			"Connection lifetime.", []float64{0.1, 1, 10, 60, 600, 3600})
		defaultRegistry = r
	})
	return defaultRegistry
}

// Default returns the default registry, or nil before Init.
func Default() *Registry { return defaultRegistry }

// The helpers below are safe to call whether or not Init has run; they
// no-op on an uninitialized default set so library code never has to
// care.

// ConnOpened records an accepted connection.
func ConnOpened(proto string) {
	if ConnectionsTotal != nil {
		ConnectionsTotal.Inc(proto)
		ConnectionsActive.Inc(proto)
	}
}

// ConnClosed records a finished connection and its lifetime in seconds.
func ConnClosed(proto string, seconds float64) {
	if ConnectionsActive != nil {
		ConnectionsActive.Dec(proto)
		ConnDurationSeconds.Observe(seconds)
	}
}

// RecvBuffer records one inbound buffer and its size.
func RecvBuffer(proto string, bytes int) {
	if RecvBuffersTotal != nil {
		RecvBuffersTotal.Inc(proto)
		RecvBytesTotal.Add(float64(bytes), proto)
	}
}

// RecvResult records a pipeline-level receive result.
func RecvResult(status string) {
	if RecvStatusTotal != nil {
		RecvStatusTotal.Inc(status)
	}
}

// MsgDropped records a message rejected at admission.
func MsgDropped(proto string) {
	if MessagesDroppedTotal != nil {
		MessagesDroppedTotal.Inc(proto)
	}
}

// SendError records a failed send.
func SendError(reason string) {
	if SendErrorsTotal != nil {
		SendErrorsTotal.Inc(reason)
	}
}
