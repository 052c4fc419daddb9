package conn

// Error is a simple error type for connection-core errors.
// It allows defining sentinel errors as constants.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

// Sentinel errors surfaced to the transport layer for policy decisions.
var (
	// ErrConnBroken is returned by Send when the connection is no
	// longer usable. Terminal: the caller should close the connection.
	ErrConnBroken = Error("connection is broken")

	// ErrSendQueueFull is returned by Send when the transmit queue is
	// full. Transient backpressure: the caller may retry later.
	ErrSendQueueFull = Error("transmit queue is full")

	// ErrNoMem is returned by Send on resource exhaustion. Transient:
	// the caller decides the retry policy.
	ErrNoMem = Error("out of memory")

	// ErrConnAbandoned is returned by Establish when the protocol
	// engine refuses the new connection.
	ErrConnAbandoned = Error("connection abandoned by protocol engine")
)
