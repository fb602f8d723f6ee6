// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"

	"github.com/stacklok/mcp-bridge/pkg/logger"
)

const (
	// maxResponseSize caps HTTP response bodies read from SSE backends.
	// The MCP specification does not define size limits, so a generous cap
	// protects against unbounded memory allocation during deserialization.
	maxResponseSize = 100 * 1024 * 1024 // 100 MB

	// sseMaxConnectAttempts bounds the connect retry loop for event-stream
	// backends. Remote endpoints flake in ways subprocesses do not.
	sseMaxConnectAttempts = 4
)

// connectStdio launches the backend as a local subprocess and speaks MCP
// over its standard streams. The transport owns the process; closing the
// client terminates it.
func (c *Client) connectStdio(ctx context.Context) (*mcpclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := mcptransport.NewStdio(c.cfg.Command, envSlice(c.cfg.Env), c.cfg.Args...)
	mc := mcpclient.NewClient(t)

	// The transport must outlive this call; ctx only bounds the handshake.
	if err := mc.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to launch subprocess %s: %w", c.cfg.Command, err)
	}
	return mc, nil
}

// connectSSE connects to a remote backend over an SSE event stream.
// Connection establishment is retried with exponential backoff; a fresh
// client is built per attempt so no half-open transport is reused.
func (c *Client) connectSSE(ctx context.Context) (*mcpclient.Client, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: newHeaderRoundTripper(sizeLimitRoundTripper(http.DefaultTransport), c.cfg.Headers),
		}
	}

	operation := func() (*mcpclient.Client, error) {
		mc, err := mcpclient.NewSSEMCPClient(
			c.cfg.URL,
			mcptransport.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create SSE client: %w", err))
		}
		if err := mc.Start(context.Background()); err != nil {
			if closeErr := mc.Close(); closeErr != nil {
				logger.Debugf("Failed to close SSE client after connect error: %v", closeErr)
			}
			return nil, fmt.Errorf("failed to connect to %s: %w", c.cfg.URL, err)
		}
		return mc, nil
	}

	mc, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(sseMaxConnectAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Debugf("Backend %s SSE connect failed, retrying in %s: %v", c.name, d, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return mc, nil
}

// connectContainer deploys the backend image as a workload, attaches to its
// standard streams, and speaks MCP over the attached pipe. The container ID
// is recorded before any fallible step so the failure path can reap it.
func (c *Client) connectContainer(ctx context.Context) (*mcpclient.Client, error) {
	if err := c.ensureRuntime(ctx); err != nil {
		return nil, err
	}

	labels := map[string]string{
		"mcp-bridge.backend": c.name,
		"mcp-bridge.managed": "true",
	}
	containerID, err := c.rt.DeployWorkload(ctx, c.cfg.Image, c.containerName(), c.cfg.Args, c.cfg.Env, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy container for image %s: %w", c.cfg.Image, err)
	}
	c.setContainerID(containerID)

	stdin, stdout, err := c.rt.AttachToWorkload(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to container: %w", err)
	}

	t := mcptransport.NewIO(stdout, stdin, io.NopCloser(bytes.NewReader(nil)))
	mc := mcpclient.NewClient(t)

	if err := mc.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start container transport: %w", err)
	}
	return mc, nil
}

// envSlice converts an environment map to KEY=VALUE form.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// roundTripperFunc is a function adapter for http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newHeaderRoundTripper returns a transport that applies the descriptor's
// static headers to every outgoing request. Headers already set on a request
// are not overwritten.
func newHeaderRoundTripper(base http.RoundTripper, headers map[string]string) http.RoundTripper {
	if len(headers) == 0 {
		return base
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		reqClone := req.Clone(req.Context())
		for k, v := range headers {
			if reqClone.Header.Get(k) == "" {
				reqClone.Header.Set(k, v)
			}
		}
		return base.RoundTrip(reqClone)
	})
}

// sizeLimitRoundTripper caps response bodies at maxResponseSize.
func sizeLimitRoundTripper(base http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		resp.Body = struct {
			io.Reader
			io.Closer
		}{
			Reader: io.LimitReader(resp.Body, maxResponseSize),
			Closer: resp.Body,
		}
		return resp, nil
	})
}
