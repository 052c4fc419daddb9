package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ShipperHandler is a slog.Handler that batches log lines and pushes
// them to a Loki-compatible aggregation endpoint over HTTP. Shipping is
// best-effort: a failed push drops the batch rather than blocking the
// data path.
type ShipperHandler struct {
	url       string
	labels    map[string]string
	client    *http.Client
	level     slog.Level
	attrs     []slog.Attr
	groups    []string
	mu        sync.Mutex
	batch     []shipEntry
	batchSize int
	flush     *time.Timer
}

type shipEntry struct {
	timestamp time.Time
	line      string
}

type shipStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type shipPush struct {
	Streams []shipStream `json:"streams"`
}

// ShipperOption configures a ShipperHandler.
type ShipperOption func(*ShipperHandler)

// WithShipperLabels sets additional stream labels.
func WithShipperLabels(labels map[string]string) ShipperOption {
	return func(h *ShipperHandler) {
		for k, v := range labels {
			h.labels[k] = v
		}
	}
}

// WithShipperLevel sets the minimum level shipped.
func WithShipperLevel(level slog.Level) ShipperOption {
	return func(h *ShipperHandler) {
		h.level = level
	}
}

// WithShipperBatchSize sets how many entries accumulate before a push.
func WithShipperBatchSize(size int) ShipperOption {
	return func(h *ShipperHandler) {
		h.batchSize = size
	}
}

// NewShipperHandler creates a remote log shipper. url is the push
// endpoint (e.g. "http://localhost:3100/loki/api/v1/push").
func NewShipperHandler(url string, opts ...ShipperOption) *ShipperHandler {
	h := &ShipperHandler{
		url:       url,
		labels:    map[string]string{"job": "relayd"},
		client:    &http.Client{Timeout: 5 * time.Second},
		level:     slog.LevelInfo,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.flush = time.AfterFunc(5*time.Second, func() {
		_ = h.Flush()
		h.flush.Reset(5 * time.Second)
	})
	return h
}

// Enabled implements slog.Handler.
func (h *ShipperHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *ShipperHandler) Handle(_ context.Context, r slog.Record) error {
	line := h.formatRecord(r)

	h.mu.Lock()
	h.batch = append(h.batch, shipEntry{timestamp: r.Time, line: line})
	full := len(h.batch) >= h.batchSize
	h.mu.Unlock()

	if full {
		return h.Flush()
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *ShipperHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *ShipperHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// Flush pushes the pending batch.
func (h *ShipperHandler) Flush() error {
	h.mu.Lock()
	if len(h.batch) == 0 {
		h.mu.Unlock()
		return nil
	}
	batch := h.batch
	h.batch = nil
	h.mu.Unlock()

	values := make([][]string, 0, len(batch))
	for _, e := range batch {
		ts := e.timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		values = append(values, []string{strconv.FormatInt(ts.UnixNano(), 10), e.line})
	}

	body, err := json.Marshal(shipPush{Streams: []shipStream{{Stream: h.labels, Values: values}}})
	if err != nil {
		return err
	}

	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("log shipper push failed: %s", resp.Status)
	}
	return nil
}

// Close stops the background flush and ships anything pending.
func (h *ShipperHandler) Close() error {
	h.flush.Stop()
	return h.Flush()
}

func (h *ShipperHandler) formatRecord(r slog.Record) string {
	fields := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	prefix := ""
	for _, g := range h.groups {
		prefix += g + "."
	}
	for _, a := range h.attrs {
		fields[prefix+a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[prefix+a.Key] = a.Value.String()
		return true
	})

	out, err := json.Marshal(fields)
	if err != nil {
		return r.Message
	}
	return string(out)
}
