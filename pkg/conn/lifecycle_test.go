package conn

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
)

func TestEstablishPropagatesHookResult(t *testing.T) {
	h := &stubHooks{initErr: ErrConnAbandoned}
	register(t, ProtoHTTP, h)

	c := NewConn("c1", ProtoHTTP, KindServer)
	if err := c.Establish(); !errors.Is(err, ErrConnAbandoned) {
		t.Fatalf("establish = %v, want ErrConnAbandoned", err)
	}
}

func TestShutdownAndClosePropagateHookResult(t *testing.T) {
	h := &stubHooks{shutdownErr: ErrConnBroken, closeErr: ErrConnBroken}
	register(t, ProtoHTTP, h)

	c := NewConn("c1", ProtoHTTP, KindServer)
	if err := c.Shutdown(true); !errors.Is(err, ErrConnBroken) {
		t.Fatalf("shutdown = %v, want ErrConnBroken", err)
	}
	if err := c.Close(true); !errors.Is(err, ErrConnBroken) {
		t.Fatalf("close = %v, want ErrConnBroken", err)
	}
	if got := c.Refs(); got != 1 {
		t.Fatalf("refcount after failed teardown calls = %d, want 1", got)
	}
}

func TestAbortFailureIsLoggedNotEscalated(t *testing.T) {
	h := &stubHooks{abortErr: errors.New("engine unhappy")}
	register(t, ProtoHTTP, h)

	var buf bytes.Buffer
	old := logger
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { logger = old })

	c := NewConn("c1", ProtoHTTP, KindServer)
	c.Abort() // must not panic and must not return anything

	if h.aborts != 1 {
		t.Fatalf("abort hook calls = %d, want 1", h.aborts)
	}
	if !bytes.Contains(buf.Bytes(), []byte("abort hook failed")) {
		t.Errorf("abort failure not logged: %q", buf.String())
	}
}

func TestSendErrorTaxonomy(t *testing.T) {
	h := &stubHooks{}
	register(t, ProtoHTTP, h)
	c := NewConn("c1", ProtoHTTP, KindServer)

	for _, sentinel := range []error{nil, ErrConnBroken, ErrSendQueueFull, ErrNoMem} {
		h.sendErr = sentinel
		if err := c.Send(BytesMsg("m")); !errors.Is(err, sentinel) {
			t.Errorf("send = %v, want %v unchanged", err, sentinel)
		}
	}
}

func TestReleasePostCondition(t *testing.T) {
	h := &stubHooks{}
	register(t, ProtoHTTP, h)

	// Empty sequencing queue: release completes normally.
	ok := NewConn("ok", ProtoHTTP, KindClient)
	ok.Release()
	if h.releases != 1 {
		t.Fatalf("release hook calls = %d, want 1", h.releases)
	}

	// Non-empty queue on a client connection: fatal resource-tracking
	// bug in a collaborator.
	bad := NewConn("bad", ProtoHTTP, KindClient)
	bad.Seq().Push(BytesMsg("orphaned request"))
	mustPanic(t, "release with non-empty sequencing queue", func() { bad.Release() })

	// Server connections have no queue to check.
	srv := NewConn("srv", ProtoHTTP, KindServer)
	srv.Release()
}

func TestRepairDispatches(t *testing.T) {
	h := &stubHooks{}
	register(t, ProtoWS, h)
	c := NewConn("c1", ProtoWS, KindServer)
	c.Repair()
	if h.repairs != 1 {
		t.Fatalf("repair hook calls = %d, want 1", h.repairs)
	}
}

func TestDropHasNoBracket(t *testing.T) {
	h := &stubHooks{}
	register(t, ProtoHTTP, h)
	c := NewConn("c1", ProtoHTTP, KindServer)

	before := c.Refs()
	c.Drop()
	if c.Refs() != before {
		t.Error("drop must not touch the refcount; caller holds the reference")
	}
	if h.drops != 1 {
		t.Fatalf("drop hook calls = %d, want 1", h.drops)
	}
}
