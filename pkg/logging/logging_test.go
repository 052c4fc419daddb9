package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})

	log.Debug("hidden")
	log.Info("visible", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug leaked through info level")
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "k=v") {
		t.Errorf("output = %q", out)
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})
	log.Info("hello", slog.Int("n", 7))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "hello" || rec["n"] != float64(7) {
		t.Fatalf("record = %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug, "info": LevelInfo, "warn": LevelWarn,
		"warning": LevelWarn, "error": LevelError, "bogus": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	log := slog.New(NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	))
	log.Info("both")
	if !strings.Contains(a.String(), "both") || !strings.Contains(b.String(), "both") {
		t.Fatalf("fan-out missed a handler: %q / %q", a.String(), b.String())
	}
}

type failingHandler struct {
	err error
}

func (f failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return f }
func (f failingHandler) WithGroup(string) slog.Handler             { return f }

func TestMultiHandlerDeliversDespiteFailure(t *testing.T) {
	boom := errors.New("sink down")
	var buf bytes.Buffer
	h := NewMultiHandler(failingHandler{err: boom}, slog.NewTextHandler(&buf, nil))

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0)
	err := h.Handle(context.Background(), rec)

	if !errors.Is(err, boom) {
		t.Errorf("failure not reported: %v", err)
	}
	if !strings.Contains(buf.String(), "still delivered") {
		t.Error("failing sink stopped delivery to the healthy one")
	}
}

func TestConnGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	log.Info("event", ConnGroup("c1", "http", "10.0.0.1"))

	out := buf.String()
	for _, want := range []string{"conn.id=c1", "conn.proto=http", "conn.peer=10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestShipperBatchesAndPushes(t *testing.T) {
	var mu sync.Mutex
	var pushes []shipPush
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p shipPush
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad push body: %v", err)
		}
		mu.Lock()
		pushes = append(pushes, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewShipperHandler(srv.URL, WithShipperBatchSize(2),
		WithShipperLabels(map[string]string{"env": "test"}))
	defer h.Close()
	log := slog.New(h)

	log.Info("one")
	log.Info("two") // batch size reached, push fires

	mu.Lock()
	defer mu.Unlock()
	if len(pushes) != 1 {
		t.Fatalf("got %d pushes, want 1", len(pushes))
	}
	stream := pushes[0].Streams[0]
	if stream.Stream["job"] != "relayd" || stream.Stream["env"] != "test" {
		t.Errorf("labels = %v", stream.Stream)
	}
	if len(stream.Values) != 2 {
		t.Errorf("batched %d lines, want 2", len(stream.Values))
	}
}

func TestShipperCloseFlushesPending(t *testing.T) {
	got := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p shipPush
		_ = json.NewDecoder(r.Body).Decode(&p)
		got <- len(p.Streams[0].Values)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewShipperHandler(srv.URL, WithShipperBatchSize(100))
	slog.New(h).Info("pending")
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := <-got; n != 1 {
		t.Fatalf("flushed %d lines, want 1", n)
	}
}

func TestShipperRespectsLevel(t *testing.T) {
	h := NewShipperHandler("http://127.0.0.1:0", WithShipperLevel(LevelWarn))
	if h.Enabled(context.Background(), LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !h.Enabled(context.Background(), LevelError) {
		t.Error("error disabled at warn level")
	}
}
