package conn

import "testing"

func TestRegisterRoutesPerProtocol(t *testing.T) {
	httpHooks := &stubHooks{}
	wsHooks := &stubHooks{}
	register(t, ProtoHTTP, httpHooks)
	register(t, ProtoWS, wsHooks)

	// A connection tagged WebSocket must dispatch to the WebSocket
	// hook set and no other.
	c := NewConn("ws1", ProtoWS, KindServer)
	if err := c.Send(BytesMsg("frame")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(wsHooks.sent) != 1 {
		t.Fatalf("ws hooks saw %d sends, want 1", len(wsHooks.sent))
	}
	if len(httpHooks.sent) != 0 {
		t.Fatalf("http hooks saw %d sends, want 0", len(httpHooks.sent))
	}

	if err := c.Establish(); err != nil {
		t.Fatalf("establish: %v", err)
	}
	c.Repair()
	_ = c.Shutdown(true)
	_ = c.Close(true)
	c.Abort()
	c.Drop()
	c.Release()

	if wsHooks.inits != 1 || wsHooks.repairs != 1 || wsHooks.shutdowns != 1 ||
		wsHooks.closes != 1 || wsHooks.aborts != 1 || wsHooks.drops != 1 ||
		wsHooks.releases != 1 {
		t.Errorf("ws hook counts off: %+v", wsHooks)
	}
	if httpHooks.inits+httpHooks.repairs+httpHooks.shutdowns+httpHooks.closes+
		httpHooks.aborts+httpHooks.drops+httpHooks.releases != 0 {
		t.Errorf("http hooks received events for a ws connection: %+v", httpHooks)
	}
}

func TestSecureTagSharesHookSet(t *testing.T) {
	h := &stubHooks{}
	register(t, ProtoWS, h)

	// Hook-set selection discards the secure bit.
	c := NewConn("wss1", ProtoWSS, KindServer)
	if err := c.Send(BytesMsg("frame")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(h.sent) != 1 {
		t.Fatalf("hooks saw %d sends, want 1", len(h.sent))
	}
}

func TestDoubleRegistrationIsFatal(t *testing.T) {
	register(t, ProtoHTTP, &stubHooks{})
	mustPanic(t, "double registration", func() { Register(ProtoHTTP, &stubHooks{}) })

	// Registering the secure variant collides with the base slot too.
	mustPanic(t, "secure variant double registration", func() { Register(ProtoHTTPS, &stubHooks{}) })
}

func TestOutOfRangeProtocolIsFatal(t *testing.T) {
	mustPanic(t, "out of range register", func() { Register(MaxProtos, &stubHooks{}) })
	mustPanic(t, "out of range unregister", func() { Unregister(MaxProtos + 3) })
}

func TestUnregisterClearsBinding(t *testing.T) {
	Register(ProtoHTTP, &stubHooks{})
	Unregister(ProtoHTTP)
	Register(ProtoHTTP, &stubHooks{})
	Unregister(ProtoHTTP)

	c := NewConn("c1", ProtoHTTP, KindServer)
	mustPanic(t, "dispatch without hooks", func() { _ = c.Establish() })
}

func TestDecoderRegistrationDiscipline(t *testing.T) {
	RegisterHTTPDecoder(nopDecoder{})
	RegisterWSDecoder(nopDecoder{})
	t.Cleanup(UnregisterDecoders)

	mustPanic(t, "double http decoder", func() { RegisterHTTPDecoder(nopDecoder{}) })
	mustPanic(t, "double ws decoder", func() { RegisterWSDecoder(nopDecoder{}) })
}
