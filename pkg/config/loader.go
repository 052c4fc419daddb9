package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading and validation.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrNoListeners      = errors.New("no listeners configured")
	ErrUnknownProto     = errors.New("unknown protocol")
	ErrBadListener      = errors.New("invalid listener")
	ErrBadUpstream      = errors.New("invalid upstream")
)

// Load reads and validates a configuration file. Format is detected by
// extension: .yaml/.yml parse as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	cfg := Default()
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
		}
	} else {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w in file: %s", ErrInvalidJSON, path)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Listeners) == 0 {
		return ErrNoListeners
	}
	for i, l := range c.Listeners {
		if l.Addr == "" {
			return fmt.Errorf("%w %d: missing addr", ErrBadListener, i)
		}
		if _, err := ParseProto(l.Proto); err != nil {
			return fmt.Errorf("%w %d: %v", ErrBadListener, i, err)
		}
		if (l.CertFile == "") != (l.KeyFile == "") {
			return fmt.Errorf("%w %d: cert_file and key_file must be set together", ErrBadListener, i)
		}
	}
	for i, u := range c.Upstreams {
		if u.Addr == "" {
			return fmt.Errorf("%w %d: missing addr", ErrBadUpstream, i)
		}
		if _, err := ParseProto(u.Proto); err != nil {
			return fmt.Errorf("%w %d: %v", ErrBadUpstream, i, err)
		}
	}
	if c.Limits.MaxConns < 0 || c.Limits.MaxMessageSize < 0 ||
		c.Limits.SendQueueDepth < 0 || c.Limits.ReadBufSize < 0 {
		return errors.New("limits must not be negative")
	}
	return nil
}
