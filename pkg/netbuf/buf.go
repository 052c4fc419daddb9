package netbuf

// Buf is one segment of inbound data. Segments are linked into chains by
// the transport layer and walked forward by the receive pipeline.
type Buf struct {
	data []byte
	next *Buf
	prev *Buf
	pool *Pool
}

// New creates a standalone, unpooled buffer wrapping data.
// The buffer takes ownership of the slice.
func New(data []byte) *Buf {
	return &Buf{data: data}
}

// Bytes returns the buffer payload.
func (b *Buf) Bytes() []byte { return b.data }

// Len returns the payload length.
func (b *Buf) Len() int { return len(b.data) }

// Truncate shortens the payload to n bytes.
func (b *Buf) Truncate(n int) {
	if n < len(b.data) {
		b.data = b.data[:n]
	}
}

// Next returns the following segment in the chain, if any.
func (b *Buf) Next() *Buf { return b.next }

// Prev returns the preceding segment in the chain, if any.
func (b *Buf) Prev() *Buf { return b.prev }

// SetNext links n directly after b. Any existing forward link is
// overwritten; n's prev link is updated to match.
func (b *Buf) SetNext(n *Buf) {
	b.next = n
	if n != nil {
		n.prev = b
	}
}

// SeverPrev cuts the backward link left by the transport layer. The
// receive pipeline owns forward traversal only, so the link is removed
// on both sides.
func (b *Buf) SeverPrev() {
	if b.prev != nil {
		b.prev.next = nil
		b.prev = nil
	}
}

// Detach clears both links without touching the neighbors. The caller
// must have captured Next beforehand if it intends to keep walking.
func (b *Buf) Detach() {
	b.next = nil
	b.prev = nil
}

// Append links n (which may itself be a chain head) after the tail of
// the chain starting at b, and returns b.
func (b *Buf) Append(n *Buf) *Buf {
	t := b
	for t.next != nil {
		t = t.next
	}
	t.SetNext(n)
	return b
}

// Tail returns the last segment of the chain starting at b.
func (b *Buf) Tail() *Buf {
	t := b
	for t.next != nil {
		t = t.next
	}
	return t
}

// Split carves the bytes at and after off into a new standalone buffer
// and truncates b to off. The remainder shares no storage with b, so
// either side can be freed independently. off must be within [0, Len].
func (b *Buf) Split(off int) *Buf {
	rest := make([]byte, len(b.data)-off)
	copy(rest, b.data[off:])
	b.data = b.data[:off]
	return New(rest)
}

// Free releases the buffer. Pooled buffers return to their pool;
// standalone buffers are simply unlinked. The buffer must not be used
// afterwards.
func (b *Buf) Free() {
	b.next = nil
	b.prev = nil
	if b.pool != nil {
		b.pool.put(b)
	}
}

// Chain links the given buffers in order and returns the head.
// Returns nil when called with no buffers.
func Chain(bufs ...*Buf) *Buf {
	if len(bufs) == 0 {
		return nil
	}
	for i := 0; i < len(bufs)-1; i++ {
		bufs[i].SetNext(bufs[i+1])
	}
	return bufs[0]
}

// FreeChain frees every segment reachable forward from head.
func FreeChain(head *Buf) {
	for b := head; b != nil; {
		next := b.next
		b.Free()
		b = next
	}
}

// ChainLen counts the segments reachable forward from head.
func ChainLen(head *Buf) int {
	n := 0
	for b := head; b != nil; b = b.next {
		n++
	}
	return n
}
