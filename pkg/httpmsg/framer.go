package httpmsg

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/metrics"
	"github.com/getrelayd/relayd/pkg/netbuf"
)

var (
	crlf       = []byte("\r\n")
	headerEnd  = []byte("\r\n\r\n")
	errBadMsg  = errors.New("malformed http message")
	errBadName = errors.New("invalid header field name")
)

// AdmitFunc decides the fate of one framed message: StatusOK to accept,
// StatusDrop to reject it, StatusBlock to escalate to connection-level
// blocking. Anything else is treated as a decode failure.
type AdmitFunc func(c *conn.Conn, msg []byte) conn.Status

// DeliverFunc receives accepted messages. The slice is only valid for
// the duration of the call.
type DeliverFunc func(c *conn.Conn, msg []byte)

// Framer delimits HTTP messages in the inbound byte stream. It
// implements conn.Decoder and owns every buffer handed to it.
type Framer struct {
	// MaxMessageSize bounds a single framed message; 0 means no limit.
	MaxMessageSize int

	// Admit is consulted per framed message; nil admits everything.
	Admit AdmitFunc

	// Deliver receives accepted messages; nil discards them.
	Deliver DeliverFunc
}

// Decode processes one buffer. When a buffer holds two messages and the
// first is rejected, the bytes of the second come back as a split
// remainder so the pipeline can reinsert them; block-class admission is
// resolved here (suppress further receive, fail the stream) and never
// escapes to the pipeline.
func (f *Framer) Decode(c *conn.Conn, b *netbuf.Buf) (conn.Status, *netbuf.Buf) {
	st := stateOf(c)
	data := st.takePending(b.Bytes())
	b.Free()

	for {
		total, complete, err := messageEnd(data)
		if err != nil {
			st.clearPending()
			return conn.StatusBad, nil
		}
		if !complete {
			if f.MaxMessageSize > 0 && len(data) > f.MaxMessageSize {
				st.clearPending()
				return conn.StatusBad, nil
			}
			st.storePending(data)
			return conn.StatusPostpone, nil
		}
		if f.MaxMessageSize > 0 && total > f.MaxMessageSize {
			st.clearPending()
			return conn.StatusBad, nil
		}

		msg, rest := data[:total], data[total:]
		verdict := conn.StatusOK
		if f.Admit != nil {
			verdict = f.Admit(c, msg)
		}
		switch verdict {
		case conn.StatusOK:
			f.deliver(c, msg)
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
			// Connection-level blocking is handled at this layer;
			// the pipeline must never see the block code.
			c.SuppressReceive()
			st.clearPending()
			return conn.StatusBad, nil

		default:
			st.clearPending()
			return conn.StatusBad, nil
		}
	}
}

func (f *Framer) deliver(c *conn.Conn, msg []byte) {
	if c.Kind() == conn.KindClient {
		// An inbound message on a client connection answers the
		// oldest in-flight request.
		c.Seq().Pop()
	}
	if f.Deliver != nil {
		f.Deliver(c, msg)
	}
}

// messageEnd locates the end of the first complete message in data.
// Returns the message length and whether the message is complete. An
// error means the bytes cannot be an HTTP message at all.
func messageEnd(data []byte) (int, bool, error) {
	head := bytes.Index(data, headerEnd)
	if head < 0 {
		// Cheap sanity check on what we have so far: the start-line
		// must be a single line of printable bytes.
		if line := bytes.Index(data, crlf); line >= 0 {
			if err := checkStartLine(data[:line]); err != nil {
				return 0, false, err
			}
		}
		return 0, false, nil
	}

	block := data[:head]
	lineEnd := bytes.Index(block, crlf)
	if lineEnd < 0 {
		lineEnd = len(block)
	}
	if err := checkStartLine(block[:lineEnd]); err != nil {
		return 0, false, err
	}

	cl, err := contentLength(block[lineEnd:])
	if err != nil {
		return 0, false, err
	}

	total := head + len(headerEnd) + cl
	return total, len(data) >= total, nil
}

func checkStartLine(line []byte) error {
	if len(line) == 0 || bytes.Count(line, []byte(" ")) < 2 {
		return errBadMsg
	}
	for _, ch := range line {
		if ch < 0x20 || ch == 0x7f {
			return errBadMsg
		}
	}
	return nil
}

// contentLength scans the header block for Content-Length, validating
// field names along the way. Messages without the header have no body.
func contentLength(block []byte) (int, error) {
	for _, line := range bytes.Split(block, crlf) {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return 0, errBadMsg
		}
		name := string(line[:colon])
		if !httpguts.ValidHeaderFieldName(name) {
			return 0, errBadName
		}
		if !strings.EqualFold(name, "Content-Length") {
			continue
		}
		v := strings.TrimSpace(string(line[colon+1:]))
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, errBadMsg
		}
		return n, nil
	}
	return 0, nil
}
