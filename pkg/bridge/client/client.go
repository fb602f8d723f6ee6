// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client manages the lifecycle of a single backend MCP server
// connection. Each backend entry in the bridge configuration maps to exactly
// one Client, which owns the transport resources (subprocess, event stream,
// or container) and the post-handshake session.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/config"
	"github.com/stacklok/mcp-bridge/pkg/container/docker"
	"github.com/stacklok/mcp-bridge/pkg/container/runtime"
	"github.com/stacklok/mcp-bridge/pkg/logger"
	"github.com/stacklok/mcp-bridge/pkg/versions"
)

// defaultStartTimeout bounds the whole Start sequence: transport
// establishment plus the MCP initialize handshake.
const defaultStartTimeout = 30 * time.Second

// Client owns the connection to one backend MCP server. It is created in the
// constructed state and moves through starting to connected, or to failed
// when the transport or handshake cannot be established. Stop is valid from
// any state and is idempotent.
type Client struct {
	name string
	cfg  config.ServerConfig

	startTimeout time.Duration
	httpClient   *http.Client
	rt           runtime.Runtime
	clientInfo   mcp.Implementation

	mu          sync.Mutex
	state       bridge.State
	mcp         *mcpclient.Client
	session     bridge.Session
	containerID string
}

// Option configures a Client.
type Option func(*Client)

// WithStartTimeout overrides the default Start timeout.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.startTimeout = d
	}
}

// WithHTTPClient overrides the HTTP client used for the SSE transport.
// Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRuntime overrides the container runtime used for the container
// transport. When unset, a runtime is discovered on first use.
func WithRuntime(rt runtime.Runtime) Option {
	return func(c *Client) {
		c.rt = rt
	}
}

// New creates a backend client for the given descriptor. The descriptor must
// resolve to exactly one transport; no transport work happens here, only
// validation of the descriptor shape.
func New(name string, cfg config.ServerConfig, opts ...Option) (*Client, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: backend name must not be empty", config.ErrInvalidConfig)
	}
	if _, err := cfg.Transport(); err != nil {
		return nil, fmt.Errorf("%w: backend %s: %w", bridge.ErrUnsupportedTransport, name, err)
	}

	c := &Client{
		name:         name,
		cfg:          cfg,
		startTimeout: defaultStartTimeout,
		clientInfo: mcp.Implementation{
			Name:    "mcp-bridge",
			Version: versions.GetVersionInfo().Version,
		},
		state: bridge.StateConstructed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the backend name this client serves.
func (c *Client) Name() string {
	return c.name
}

// Config returns the descriptor this client was created from. Registry
// reloads diff this value against the incoming configuration.
func (c *Client) Config() config.ServerConfig {
	return c.cfg
}

// State returns the current lifecycle state.
func (c *Client) State() bridge.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the live session, or nil when the client is not connected.
// A nil session is routine; the router skips sessionless clients.
func (c *Client) Session() bridge.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start establishes the transport and performs the MCP initialize handshake.
// On success the client is connected and Session returns a live session. On
// failure all partially acquired resources are released and the client is
// failed. Starting an already connected client is a no-op.
//
// The mutex is not held while connecting, so State, Session, and Stop stay
// responsive during a slow start. Partially acquired resources are published
// under the lock as they appear; a Stop that lands mid-start tears them down
// and wins, and Start reports the interruption instead of connecting.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case bridge.StateConnected:
		c.mu.Unlock()
		return nil
	case bridge.StateStarting:
		c.mu.Unlock()
		return fmt.Errorf("backend %s: start already in progress", c.name)
	case bridge.StateStopped, bridge.StateFailed:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("backend %s: cannot start from state %s", c.name, state)
	case bridge.StateConstructed:
		// Proceed.
	}
	c.state = bridge.StateStarting
	c.mu.Unlock()

	logger.Debugf("Starting backend %s", c.name)

	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	connectErr := c.connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != bridge.StateStarting {
		// A concurrent Stop ran while we were connecting. Its teardown
		// released everything published at that point; release anything
		// acquired since and leave the state as Stop set it.
		c.teardown(context.Background())
		return fmt.Errorf("backend %s: stopped during start", c.name)
	}

	if connectErr != nil {
		c.teardown(context.Background())
		c.state = bridge.StateFailed
		return fmt.Errorf("failed to start backend %s: %w", c.name, connectErr)
	}

	c.session = &mcpSession{backend: c.name, client: c.mcp}
	c.state = bridge.StateConnected
	logger.Infof("Backend %s connected", c.name)
	return nil
}

// connect builds the transport, starts it, and runs the handshake. Runs
// without c.mu; acquired resources are published through setMCP and
// setContainerID so a concurrent Stop can release them.
func (c *Client) connect(ctx context.Context) error {
	transportType, err := c.cfg.Transport()
	if err != nil {
		return err
	}

	var mc *mcpclient.Client
	switch transportType {
	case config.TransportStdio:
		mc, err = c.connectStdio(ctx)
	case config.TransportSSE:
		mc, err = c.connectSSE(ctx)
	case config.TransportContainer:
		mc, err = c.connectContainer(ctx)
	default:
		return fmt.Errorf("%w: %s", bridge.ErrUnsupportedTransport, transportType)
	}
	if err != nil {
		return err
	}
	c.setMCP(mc)

	if _, err := mc.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      c.clientInfo,
		},
	}); err != nil {
		return fmt.Errorf("initialize handshake failed: %w", err)
	}
	return nil
}

// setMCP publishes the transport client for teardown visibility.
func (c *Client) setMCP(mc *mcpclient.Client) {
	c.mu.Lock()
	c.mcp = mc
	c.mu.Unlock()
}

// setContainerID publishes a deployed workload ID for teardown visibility.
func (c *Client) setContainerID(id string) {
	c.mu.Lock()
	c.containerID = id
	c.mu.Unlock()
}

// Stop terminates the session and releases all transport resources. It is
// idempotent and valid from any state; stopping a constructed, stopped, or
// failed client succeeds without doing transport work.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == bridge.StateStopped {
		return nil
	}

	err := c.teardown(ctx)
	c.state = bridge.StateStopped
	if err != nil {
		return fmt.Errorf("failed to stop backend %s: %w", c.name, err)
	}
	logger.Debugf("Backend %s stopped", c.name)
	return nil
}

// teardown releases whatever resources have been acquired so far. Called
// with c.mu held, both from Stop and from the Start failure path.
func (c *Client) teardown(ctx context.Context) error {
	var errs []error

	if c.mcp != nil {
		if err := c.mcp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close MCP client: %w", err))
		}
		c.mcp = nil
	}
	c.session = nil

	if c.containerID != "" {
		if err := c.rt.StopWorkload(ctx, c.containerID); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop container: %w", err))
		}
		if err := c.rt.RemoveWorkload(ctx, c.containerID); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove container: %w", err))
		}
		c.containerID = ""
	}

	return errors.Join(errs...)
}

// containerName builds a unique container name for this backend so that
// repeated starts of the same backend never collide with leftovers.
func (c *Client) containerName() string {
	return fmt.Sprintf("mcp-bridge-%s-%s", c.name, uuid.NewString()[:8])
}

// ensureRuntime discovers a container runtime if none was injected.
func (c *Client) ensureRuntime(ctx context.Context) error {
	if c.rt != nil {
		return nil
	}
	rt, err := docker.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("no container runtime available: %w", err)
	}
	c.rt = rt
	return nil
}
