package wsmsg

import (
	"encoding/binary"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/metrics"
	"github.com/getrelayd/relayd/pkg/netbuf"
)

var (
	errReservedBits      = errors.New("nonzero reserved bits")
	errBadOpcode         = errors.New("unknown opcode")
	errFrameTooBig       = errors.New("frame exceeds addressable size")
	errFragmentedControl = errors.New("fragmented control frame")
	errControlTooBig     = errors.New("control frame payload over 125 bytes")
)

const (
	finBit  = 0x80
	rsvMask = 0x70
	opMask  = 0x0f
	maskBit = 0x80
	lenMask = 0x7f

	maxControlPayload = 125
)

// Frame is one delimited WebSocket frame as seen on the wire.
type Frame struct {
	Fin     bool
	Opcode  int // websocket.TextMessage, websocket.CloseMessage, ...
	Masked  bool
	Payload []byte // unmasked; only valid for the duration of delivery
	Raw     []byte // the full frame bytes, mask intact
}

// AdmitFunc decides the fate of one frame: StatusOK to accept,
// StatusDrop to reject it, StatusBlock to escalate to connection-level
// blocking. Anything else is treated as a decode failure.
type AdmitFunc func(c *conn.Conn, f *Frame) conn.Status

// DeliverFunc receives accepted frames.
type DeliverFunc func(c *conn.Conn, f *Frame)

// Framer delimits WebSocket frames in the inbound byte stream. It
// implements conn.Decoder and owns every buffer handed to it.
type Framer struct {
	// MaxFrameSize bounds a single frame including its header; 0 means
	// no limit.
	MaxFrameSize int

	// RequireMask enforces client-to-server masking. Set on
	// server-kind connections per RFC 6455 §5.1.
	RequireMask bool

	// Admit is consulted per frame; nil admits everything.
	Admit AdmitFunc

	// Deliver receives accepted frames; nil discards them.
	Deliver DeliverFunc
}

// Decode processes one buffer. A rejected frame followed by more bytes
// hands those bytes back as a split remainder for reinsertion;
// block-class admission is resolved here and never escapes to the
// pipeline.
func (f *Framer) Decode(c *conn.Conn, b *netbuf.Buf) (conn.Status, *netbuf.Buf) {
	st := stateOf(c)
	data := st.takePending(b.Bytes())
	b.Free()

	for {
		fr, total, err := parseFrame(data)
		if err != nil {
			st.clearPending()
			return conn.StatusBad, nil
		}
		if f.MaxFrameSize > 0 && (total > f.MaxFrameSize ||
			(fr == nil && len(data) > f.MaxFrameSize)) {
			st.clearPending()
			return conn.StatusBad, nil
		}
		if fr == nil {
			st.storePending(data)
			return conn.StatusPostpone, nil
		}
		if f.RequireMask && !fr.Masked {
			st.clearPending()
			return conn.StatusBad, nil
		}

		rest := data[total:]
		verdict := conn.StatusOK
		if f.Admit != nil {
			verdict = f.Admit(c, fr)
		}
		switch verdict {
		case conn.StatusOK:
			f.deliver(c, fr)
			if len(rest) == 0 {
				return conn.StatusOK, nil
			}
			data = rest

		case conn.StatusDrop:
			metrics.MsgDropped(c.Proto().String())
			st.clearPending()
			if len(rest) > 0 {
				split := make([]byte, len(rest))
				copy(split, rest)
				return conn.StatusDrop, netbuf.New(split)
			}
			return conn.StatusDrop, nil

		case conn.StatusBlock:
			c.SuppressReceive()
			st.clearPending()
			return conn.StatusBad, nil

		default:
			st.clearPending()
			return conn.StatusBad, nil
		}
	}
}

func (f *Framer) deliver(c *conn.Conn, fr *Frame) {
	if fr.Opcode == websocket.CloseMessage {
		// The peer started the closing handshake; nothing after a
		// close frame is worth decoding.
		c.SuppressReceive()
	}
	if c.Kind() == conn.KindClient && dataOpcode(fr.Opcode) && fr.Fin {
		c.Seq().Pop()
	}
	if f.Deliver != nil {
		f.Deliver(c, fr)
	}
}

func dataOpcode(op int) bool {
	return op == websocket.TextMessage || op == websocket.BinaryMessage
}

func controlOpcode(op int) bool {
	return op == websocket.CloseMessage || op == websocket.PingMessage ||
		op == websocket.PongMessage
}

// parseFrame reads one frame from the head of data. A nil frame with a
// nil error means the frame is not complete yet.
func parseFrame(data []byte) (*Frame, int, error) {
	if len(data) < 2 {
		return nil, 0, nil
	}
	b0, b1 := data[0], data[1]
	if b0&rsvMask != 0 {
		return nil, 0, errReservedBits
	}
	op := int(b0 & opMask)
	if op != 0 && !dataOpcode(op) && !controlOpcode(op) {
		return nil, 0, errBadOpcode
	}
	fin := b0&finBit != 0
	masked := b1&maskBit != 0

	n := 2
	payloadLen := int(b1 & lenMask)
	switch payloadLen {
	case 126:
		if len(data) < n+2 {
			return nil, 0, nil
		}
		payloadLen = int(binary.BigEndian.Uint16(data[n:]))
		n += 2
	case 127:
		if len(data) < n+8 {
			return nil, 0, nil
		}
		v := binary.BigEndian.Uint64(data[n:])
		if v > 1<<31 {
			return nil, 0, errFrameTooBig
		}
		payloadLen = int(v)
		n += 8
	}

	if controlOpcode(op) {
		if !fin {
			return nil, 0, errFragmentedControl
		}
		if payloadLen > maxControlPayload {
			return nil, 0, errControlTooBig
		}
	}

	var key [4]byte
	if masked {
		if len(data) < n+4 {
			return nil, 0, nil
		}
		copy(key[:], data[n:])
		n += 4
	}

	total := n + payloadLen
	if len(data) < total {
		return nil, 0, nil
	}

	payload := data[n:total]
	if masked {
		payload = unmask(payload, key)
	}
	return &Frame{
		Fin:     fin,
		Opcode:  op,
		Masked:  masked,
		Payload: payload,
		Raw:     data[:total],
	}, total, nil
}

func unmask(payload []byte, key [4]byte) []byte {
	out := make([]byte, len(payload))
	for i, ch := range payload {
		out[i] = ch ^ key[i&3]
	}
	return out
}

// encodeFrame builds a server-to-client frame (unmasked) with fin set.
func encodeFrame(opcode int, payload []byte) []byte {
	var hdr [10]byte
	hdr[0] = finBit | byte(opcode)
	n := 2
	switch {
	case len(payload) < 126:
		hdr[1] = byte(len(payload))
	case len(payload) < 1<<16:
		hdr[1] = 126
		binary.BigEndian.PutUint16(hdr[2:], uint16(len(payload)))
		n += 2
	default:
		hdr[1] = 127
		binary.BigEndian.PutUint64(hdr[2:], uint64(len(payload)))
		n += 8
	}
	return append(hdr[:n], payload...)
}
