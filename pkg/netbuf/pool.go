package netbuf

import "sync"

// Pool recycles fixed-capacity buffers for the read path. It is safe for
// concurrent use.
type Pool struct {
	size int
	p    sync.Pool
}

// NewPool creates a pool handing out buffers with capacity size.
func NewPool(size int) *Pool {
	pl := &Pool{size: size}
	pl.p.New = func() any {
		return &Buf{data: make([]byte, size), pool: pl}
	}
	return pl
}

// Get returns a buffer with Len equal to the pool's segment size. The
// caller typically reads into Bytes and then Truncates to the number of
// bytes actually received.
func (p *Pool) Get() *Buf {
	b := p.p.Get().(*Buf)
	b.data = b.data[:cap(b.data)]
	b.next = nil
	b.prev = nil
	return b
}

// Size returns the segment capacity of pooled buffers.
func (p *Pool) Size() int { return p.size }

func (p *Pool) put(b *Buf) {
	b.data = b.data[:cap(b.data)]
	p.p.Put(b)
}
