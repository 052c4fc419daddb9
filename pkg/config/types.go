// Package config defines the relayd configuration file format and its
// loader. Files are YAML or JSON, detected by extension.
package config

import (
	"fmt"
	"strings"

	"github.com/getrelayd/relayd/pkg/conn"
)

// Config is the root of the relayd configuration.
type Config struct {
	Listeners []Listener `yaml:"listeners" json:"listeners"`
	Upstreams []Upstream `yaml:"upstreams,omitempty" json:"upstreams,omitempty"`
	Limits    Limits     `yaml:"limits,omitempty" json:"limits,omitempty"`
	Logging   Logging    `yaml:"logging,omitempty" json:"logging,omitempty"`
	Metrics   Metrics    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// Listener describes one accepting endpoint.
type Listener struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr" json:"addr"`

	// Proto selects the protocol engine: http, https, ws, or wss.
	Proto string `yaml:"proto" json:"proto"`

	// CertFile and KeyFile provision TLS for secure protocols. Both
	// empty means a self-signed development certificate.
	CertFile string `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty" json:"key_file,omitempty"`
}

// Upstream describes one dial target for client-kind connections.
type Upstream struct {
	Addr  string `yaml:"addr" json:"addr"`
	Proto string `yaml:"proto" json:"proto"`
}

// Limits bounds per-connection resources.
type Limits struct {
	// MaxConns caps concurrent connections per listener; 0 is no cap.
	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`

	// MaxMessageSize bounds one framed message in bytes; 0 is no bound.
	MaxMessageSize int `yaml:"max_message_size,omitempty" json:"max_message_size,omitempty"`

	// SendQueueDepth bounds the per-connection transmit queue.
	SendQueueDepth int `yaml:"send_queue_depth,omitempty" json:"send_queue_depth,omitempty"`

	// ReadBufSize is the read segment size in bytes.
	ReadBufSize int `yaml:"read_buf_size,omitempty" json:"read_buf_size,omitempty"`
}

// Logging configures the log pipeline.
type Logging struct {
	Level      string `yaml:"level,omitempty" json:"level,omitempty"`
	Format     string `yaml:"format,omitempty" json:"format,omitempty"`
	ShipperURL string `yaml:"shipper_url,omitempty" json:"shipper_url,omitempty"`
}

// Metrics configures the metrics endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// Default returns a configuration with one plaintext HTTP listener.
func Default() *Config {
	return &Config{
		Listeners: []Listener{{Addr: ":8880", Proto: "http"}},
		Limits: Limits{
			SendQueueDepth: 64,
			ReadBufSize:    16 * 1024,
		},
		Logging: Logging{Level: "info", Format: "text"},
		Metrics: Metrics{Addr: ":9090"},
	}
}

// ParseProto maps a configured protocol name to its tag.
func ParseProto(s string) (conn.Proto, error) {
	switch strings.ToLower(s) {
	case "http":
		return conn.ProtoHTTP, nil
	case "https":
		return conn.ProtoHTTPS, nil
	case "ws":
		return conn.ProtoWS, nil
	case "wss":
		return conn.ProtoWSS, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProto, s)
}
