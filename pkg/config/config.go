// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config provides the configuration model for mcp-bridge.
//
// A configuration maps backend server names to descriptors. The transport
// variant of each descriptor is derived from which fields are populated and
// is decided at validation time, never at runtime.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Transport identifies how the bridge reaches a backend MCP server.
type Transport string

const (
	// TransportStdio runs the backend as a local subprocess and speaks MCP
	// over its standard streams.
	TransportStdio Transport = "stdio"

	// TransportSSE connects to a remote backend over an SSE event stream.
	TransportSSE Transport = "sse"

	// TransportContainer runs the backend in a container with attached
	// standard streams.
	TransportContainer Transport = "container"
)

// Configuration errors. Check with errors.Is.
var (
	// ErrInvalidConfig indicates the configuration as a whole is unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownTransport indicates a server entry populates none of the
	// transport-identifying fields.
	ErrUnknownTransport = errors.New("server config matches no known transport")

	// ErrAmbiguousTransport indicates a server entry populates more than one
	// transport-identifying field.
	ErrAmbiguousTransport = errors.New("server config matches multiple transports")
)

// ServerConfig describes one backend MCP server and how to reach it.
// Exactly one of Command, URL, or Image must be set; the populated field
// selects the transport variant.
type ServerConfig struct {
	// Command is the executable to run for stdio backends.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// URL is the remote endpoint for SSE backends.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Image is the container image reference for container backends.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Args are passed to the subprocess or container entrypoint.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Env overrides environment variables for subprocess and container
	// backends.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Headers are added to every request for SSE backends.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Transport derives the transport variant from the populated fields.
// Returns ErrUnknownTransport or ErrAmbiguousTransport when the shape does
// not identify exactly one variant.
func (s ServerConfig) Transport() (Transport, error) {
	var transports []Transport
	if s.Command != "" {
		transports = append(transports, TransportStdio)
	}
	if s.URL != "" {
		transports = append(transports, TransportSSE)
	}
	if s.Image != "" {
		transports = append(transports, TransportContainer)
	}

	switch len(transports) {
	case 1:
		return transports[0], nil
	case 0:
		return "", ErrUnknownTransport
	default:
		return "", fmt.Errorf("%w: %v", ErrAmbiguousTransport, transports)
	}
}

// Equal reports whether two descriptors are identical by value.
// The reload coordinator uses this to leave unchanged backends running.
func (s ServerConfig) Equal(other ServerConfig) bool {
	return reflect.DeepEqual(s, other)
}

// NetworkConfig holds the listen settings for the bridge's HTTP surface.
type NetworkConfig struct {
	// Host is the listen address.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the listen port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
}

// Config is the validated configuration for the bridge.
type Config struct {
	// Network configures the HTTP surface.
	Network NetworkConfig `json:"network,omitempty" yaml:"network,omitempty"`

	// Servers maps backend names to their descriptors. The key is the
	// backend name and must be non-empty and unique, which the map shape
	// already guarantees.
	Servers map[string]ServerConfig `json:"mcpServers,omitempty" yaml:"mcpServers,omitempty"`
}

// DefaultConfig returns a configuration populated with defaults.
// This is the single source of truth for default values; loaded
// configurations are merged on top of it.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Host: "127.0.0.1",
			Port: 4483,
		},
		Servers: map[string]ServerConfig{},
	}
}

// ServerNames returns the backend names in sorted order. Iteration over the
// servers map must be deterministic for logging and for the router's
// first-match-wins guarantee.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration strictly: every server entry must
// identify exactly one transport. Used by the validate command and by tests;
// the registry itself skips malformed entries with a warning so that one bad
// entry cannot take down the rest of the bridge.
func (c *Config) Validate() error {
	if c.Network.Port < 0 || c.Network.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Network.Port)
	}

	var errs []error
	for _, name := range c.ServerNames() {
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: empty server name", ErrInvalidConfig))
			continue
		}
		server := c.Servers[name]
		if _, err := server.Transport(); err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
