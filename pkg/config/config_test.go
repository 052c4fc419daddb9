package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/getrelayd/relayd/pkg/conn"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "relayd.yaml", `
listeners:
  - addr: ":8880"
    proto: http
  - addr: ":8443"
    proto: https
    cert_file: /etc/relayd/cert.pem
    key_file: /etc/relayd/key.pem
upstreams:
  - addr: "10.0.0.5:80"
    proto: http
limits:
  max_conns: 1000
  max_message_size: 1048576
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Listeners) != 2 || cfg.Listeners[1].Proto != "https" {
		t.Fatalf("listeners = %+v", cfg.Listeners)
	}
	if cfg.Limits.MaxConns != 1000 {
		t.Errorf("max_conns = %d", cfg.Limits.MaxConns)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Limits.ReadBufSize != 16*1024 {
		t.Errorf("read_buf_size default lost: %d", cfg.Limits.ReadBufSize)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "relayd.json",
		`{"listeners": [{"addr": ":9000", "proto": "ws"}]}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Listeners) != 1 || cfg.Listeners[0].Proto != "ws" {
		t.Fatalf("listeners = %+v", cfg.Listeners)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"missing file", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "nope.yaml")
		}, ErrFileNotFound},
		{"empty file", func(t *testing.T) string {
			return writeFile(t, "empty.yaml", "")
		}, ErrEmptyFile},
		{"bad yaml", func(t *testing.T) string {
			return writeFile(t, "bad.yaml", "listeners: [}")
		}, ErrInvalidYAML},
		{"bad json", func(t *testing.T) string {
			return writeFile(t, "bad.json", "{nope")
		}, ErrInvalidJSON},
		{"no listeners", func(t *testing.T) string {
			return writeFile(t, "none.yaml", "listeners: []")
		}, ErrNoListeners},
		{"unknown proto", func(t *testing.T) string {
			return writeFile(t, "proto.yaml", "listeners:\n  - addr: \":1\"\n    proto: gopher")
		}, ErrBadListener},
		{"cert without key", func(t *testing.T) string {
			return writeFile(t, "cert.yaml",
				"listeners:\n  - addr: \":1\"\n    proto: https\n    cert_file: /c.pem")
		}, ErrBadListener},
	}
	for _, tc := range cases {
		if _, err := Load(tc.path(t)); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestParseProto(t *testing.T) {
	cases := map[string]conn.Proto{
		"http": conn.ProtoHTTP, "HTTPS": conn.ProtoHTTPS,
		"ws": conn.ProtoWS, "wss": conn.ProtoWSS,
	}
	for in, want := range cases {
		got, err := ParseProto(in)
		if err != nil || got != want {
			t.Errorf("ParseProto(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseProto("smtp"); !errors.Is(err, ErrUnknownProto) {
		t.Errorf("unknown proto err = %v", err)
	}
}
