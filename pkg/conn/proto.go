package conn

import "fmt"

// Proto identifies the protocol engine owning a connection. The tag is
// immutable for the lifetime of the connection.
//
// The high bit marks the TLS-wrapped variant of a base protocol. It
// participates in decoder selection only: hook-set lookup collapses the
// tag to its base protocol, so plain and secure variants share one hook
// set.
type Proto uint8

// Base protocol identifiers. Hook sets register under these.
const (
	ProtoHTTP Proto = iota
	ProtoWS

	// MaxProtos bounds the hook registry. Base identifiers must be
	// below it.
	MaxProtos Proto = 8
)

// secureBit marks the TLS-wrapped variant of a base protocol.
const secureBit Proto = 0x80

// TLS-wrapped variants.
const (
	ProtoHTTPS = ProtoHTTP | secureBit
	ProtoWSS   = ProtoWS | secureBit
)

// Base strips the secure bit, yielding the hook-set identifier.
func (p Proto) Base() Proto { return p &^ secureBit }

// Secure reports whether the tag names a TLS-wrapped variant.
func (p Proto) Secure() bool { return p&secureBit != 0 }

// String returns a human-readable protocol name.
func (p Proto) String() string {
	switch p {
	case ProtoHTTP:
		return "http"
	case ProtoHTTPS:
		return "https"
	case ProtoWS:
		return "ws"
	case ProtoWSS:
		return "wss"
	}
	if p.Secure() {
		return fmt.Sprintf("proto(%d+tls)", uint8(p.Base()))
	}
	return fmt.Sprintf("proto(%d)", uint8(p))
}

// hookIndex collapses a tag to its hook-table slot. An identifier
// outside the registry range is a configuration-time programming error.
func hookIndex(p Proto) int {
	b := p.Base()
	if b >= MaxProtos {
		panic(fmt.Sprintf("conn: protocol identifier %d out of range [0, %d)", b, MaxProtos))
	}
	return int(b)
}
