package conn

// Status is the result vocabulary shared by the message decoders and the
// receive pipeline.
type Status int

const (
	// StatusOK: buffer fully consumed, valid message(s) delivered
	// upstream.
	StatusOK Status = iota

	// StatusPostpone: the buffer ended inside a partial message; the
	// decoder keeps state and awaits more data.
	StatusPostpone

	// StatusDrop: the buffer's message failed higher-layer admission
	// and was discarded. May be accompanied by a split remainder
	// holding a second message that began later in the same buffer.
	StatusDrop

	// StatusBlock escalates a message to connection-level blocking.
	// Decoders must resolve it internally; its arrival at the receive
	// pipeline is a fatal internal-consistency violation.
	StatusBlock

	// StatusBad: irrecoverable decode failure. The rest of the chain
	// is discarded and the transport layer should close the
	// connection.
	StatusBad
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPostpone:
		return "postpone"
	case StatusDrop:
		return "drop"
	case StatusBlock:
		return "block"
	case StatusBad:
		return "bad"
	}
	return "unknown"
}

// reduceStatus collapses the last-seen decoder code to the vocabulary
// the transport layer understands. StatusOK and StatusPostpone pass
// through: both mean the connection stream is still healthy (postpone is
// a partial message awaiting redelivery, handled by the transport's
// buffering). Everything else, including a trailing StatusDrop,
// normalizes to StatusBad so the transport closes the connection.
func reduceStatus(r Status) Status {
	if r == StatusOK || r == StatusPostpone {
		return r
	}
	return StatusBad
}
