package conn

import (
	"fmt"

	"github.com/getrelayd/relayd/pkg/netbuf"
)

// Receive processes a chain of inbound buffers delivered by the
// transport layer. Every buffer in the chain is consumed whether or not
// it was successfully decoded.
//
// Buffers are processed strictly in arrival order. The only reordering
// ever applied is the bounded reinsertion of a split remainder: when a
// decoder drops the first message of a buffer that held two, the
// remainder carrying the second message is pushed back in front of the
// buffers that followed the original one. After any result other than
// ok, postpone, or drop, the rest of the chain is discarded without
// decoding; a broken connection is not worth continuing to parse.
//
// The returned status is reduced to the vocabulary the transport layer
// acts on: StatusOK and StatusPostpone pass through, anything else
// becomes StatusBad.
func (c *Conn) Receive(chain *netbuf.Buf) Status {
	if chain == nil {
		return StatusOK
	}
	if c.stopRecv.Load() {
		// Drain path: teardown has begun, nothing gets decoded.
		netbuf.FreeChain(chain)
		return StatusOK
	}

	// The transport may leave a backward link on the head; this
	// pipeline owns forward traversal only.
	chain.SeverPrev()

	r := StatusOK
	b := chain
	next := b.Next()
	for b != nil {
		if r == StatusOK || r == StatusPostpone || r == StatusDrop {
			b.Detach()
			var split *netbuf.Buf
			if c.proto.Base() == ProtoWS {
				r, split = wsDec.Decode(c, b)
			} else {
				r, split = httpDec.Decode(c, b)
			}
			if split != nil {
				if r == StatusDrop {
					// The buffer held more than one message
					// and the first was dropped. Reinsert
					// the remainder so the next message is
					// decoded before the buffers that
					// followed.
					split.Tail().SetNext(next)
					next = split
				} else {
					// The decoder contract allows a
					// remainder with drop only; reclaim the
					// orphan rather than leak it.
					netbuf.FreeChain(split)
				}
			}
		} else {
			b.Free()
		}
		b = next
		if b != nil {
			next = b.Next()
		} else {
			next = nil
		}
	}

	if r == StatusBlock {
		// Block-class results are for higher-layer admission modules
		// and must be resolved inside the decoder. One arriving here
		// means a collaborator bug; continuing would risk
		// double-processing.
		panic(fmt.Sprintf("conn %s: block status reached the receive pipeline", c.id))
	}
	return reduceStatus(r)
}
