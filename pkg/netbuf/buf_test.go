package netbuf

import (
	"bytes"
	"testing"
)

func TestChainLinks(t *testing.T) {
	a, b, c := New([]byte("a")), New([]byte("b")), New([]byte("c"))
	head := Chain(a, b, c)

	if head != a || a.Next() != b || b.Next() != c || c.Next() != nil {
		t.Fatal("forward links wrong")
	}
	if c.Prev() != b || b.Prev() != a || a.Prev() != nil {
		t.Fatal("backward links wrong")
	}
	if got := ChainLen(head); got != 3 {
		t.Fatalf("ChainLen = %d", got)
	}
	if tail := head.Tail(); tail != c {
		t.Fatal("Tail did not find the last segment")
	}
}

func TestSetNextFixesPrev(t *testing.T) {
	a, b := New([]byte("a")), New([]byte("b"))
	a.SetNext(b)
	if b.Prev() != a {
		t.Fatal("SetNext left prev stale")
	}
	a.SetNext(nil)
	if a.Next() != nil {
		t.Fatal("SetNext(nil) kept the link")
	}
}

func TestSeverPrev(t *testing.T) {
	a, b := New([]byte("a")), New([]byte("b"))
	a.SetNext(b)

	b.SeverPrev()
	if b.Prev() != nil || a.Next() != nil {
		t.Fatal("SeverPrev left a dangling link")
	}
	// Severing an unlinked head is a no-op.
	b.SeverPrev()
}

func TestDetachKeepsNeighbors(t *testing.T) {
	a, b, c := New([]byte("a")), New([]byte("b")), New([]byte("c"))
	Chain(a, b, c)

	next := b.Next()
	b.Detach()
	if b.Next() != nil || b.Prev() != nil {
		t.Fatal("Detach kept links")
	}
	if next != c {
		t.Fatal("captured next lost")
	}
}

func TestSplitCopiesRemainder(t *testing.T) {
	b := New([]byte("headtail"))
	rest := b.Split(4)

	if string(b.Bytes()) != "head" || string(rest.Bytes()) != "tail" {
		t.Fatalf("split = %q / %q", b.Bytes(), rest.Bytes())
	}
	// The remainder owns its storage.
	b.Bytes()[0] = 'X'
	if !bytes.Equal(rest.Bytes(), []byte("tail")) {
		t.Fatal("remainder shares storage with the original")
	}
	if rest.Next() != nil || rest.Prev() != nil {
		t.Fatal("remainder born linked")
	}
}

func TestSplitAtBounds(t *testing.T) {
	b := New([]byte("abc"))
	rest := b.Split(3)
	if b.Len() != 3 || rest.Len() != 0 {
		t.Fatalf("split at end: %d/%d", b.Len(), rest.Len())
	}

	b2 := New([]byte("abc"))
	rest2 := b2.Split(0)
	if b2.Len() != 0 || rest2.Len() != 3 {
		t.Fatalf("split at start: %d/%d", b2.Len(), rest2.Len())
	}
}

func TestAppendChains(t *testing.T) {
	a := Chain(New([]byte("a")), New([]byte("b")))
	c := Chain(New([]byte("c")), New([]byte("d")))
	a.Append(c)
	if ChainLen(a) != 4 || string(a.Tail().Bytes()) != "d" {
		t.Fatal("Append did not splice the chains")
	}
}

func TestPoolRecyclesAndResets(t *testing.T) {
	p := NewPool(64)
	b := p.Get()
	if b.Len() != 64 {
		t.Fatalf("pooled Len = %d", b.Len())
	}
	b.Truncate(5)
	next := New([]byte("n"))
	b.SetNext(next)
	b.Free()

	b2 := p.Get()
	if b2.Len() != 64 || b2.Next() != nil || b2.Prev() != nil {
		t.Fatal("recycled buffer not reset")
	}
}

func TestFreeChainUnpooled(t *testing.T) {
	head := Chain(New([]byte("a")), New([]byte("b")), New([]byte("c")))
	FreeChain(head) // must not panic on standalone buffers
	if head.Next() != nil {
		t.Fatal("FreeChain left links")
	}
}
