// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry maintains the set of live backend clients, keyed by
// backend name, and converges that set against the bridge configuration.
//
// Mutation happens only through Initialize, Reload, and Update, which are
// serialized so the registry has a single logical writer. Reads return
// copied snapshots and never block writers for longer than a map copy.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/bridge/client"
	"github.com/stacklok/mcp-bridge/pkg/config"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// ClientFactory builds a backend client for one descriptor. Abstracted so
// tests can substitute fakes for real transports.
type ClientFactory func(name string, cfg config.ServerConfig) (bridge.BackendClient, error)

// Registry holds the live backend clients for the bridge.
type Registry struct {
	loader  config.Loader
	factory ClientFactory

	// convergeMu serializes all registry mutation. TryLock gives waiting
	// reload callers an immediate ErrReloadInProgress instead of queueing.
	convergeMu sync.Mutex

	// mu guards the clients map for concurrent readers.
	mu      sync.RWMutex
	clients map[string]bridge.BackendClient
}

// Option configures a Registry.
type Option func(*Registry)

// WithClientFactory overrides how backend clients are built. Intended for
// tests.
func WithClientFactory(f ClientFactory) Option {
	return func(r *Registry) {
		r.factory = f
	}
}

// New creates an empty registry that loads configuration through the given
// loader. By default backend clients are real transport clients.
func New(loader config.Loader, opts ...Option) *Registry {
	r := &Registry{
		loader:  loader,
		clients: make(map[string]bridge.BackendClient),
		factory: func(name string, cfg config.ServerConfig) (bridge.BackendClient, error) {
			return client.New(name, cfg)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize loads the configuration and starts a client for every backend
// entry. Malformed entries are skipped with a warning and individual start
// failures are logged, not fatal: one broken backend never prevents the
// others from serving.
func (r *Registry) Initialize(ctx context.Context) error {
	r.convergeMu.Lock()
	defer r.convergeMu.Unlock()

	cfg, err := r.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	r.converge(ctx, cfg.Servers)
	return nil
}

// Get returns the client for the named backend.
func (r *Registry) Get(name string) (bridge.BackendClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrBackendNotFound, name)
	}
	return c, nil
}

// List returns a snapshot of all clients in stable name order. The returned
// slice is a copy; registry mutation after List does not affect it.
func (r *Registry) List() []bridge.BackendClient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]bridge.BackendClient, 0, len(names))
	for _, name := range names {
		out = append(out, r.clients[name])
	}
	return out
}

// Reload re-reads the configuration and converges the registry to it. Only
// one reload runs at a time; a reload requested while another is in flight
// fails immediately with ErrReloadInProgress. A configuration load error
// aborts the reload and leaves the current backend set untouched.
func (r *Registry) Reload(ctx context.Context) error {
	if !r.convergeMu.TryLock() {
		return bridge.ErrReloadInProgress
	}
	defer r.convergeMu.Unlock()

	cfg, err := r.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration, keeping current backends: %w", err)
	}

	r.converge(ctx, cfg.Servers)
	return nil
}

// Update converges the registry to an explicitly supplied backend set,
// bypassing the loader. Serialized with Reload under the same lock.
func (r *Registry) Update(ctx context.Context, servers map[string]config.ServerConfig) error {
	if !r.convergeMu.TryLock() {
		return bridge.ErrReloadInProgress
	}
	defer r.convergeMu.Unlock()

	r.converge(ctx, servers)
	return nil
}

// Close stops every backend client and empties the registry. Backends are
// stopped concurrently; Stop is idempotent so this is safe even if a
// converge already stopped some of them.
func (r *Registry) Close(ctx context.Context) error {
	r.convergeMu.Lock()
	defer r.convergeMu.Unlock()

	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]bridge.BackendClient)
	r.mu.Unlock()

	var g errgroup.Group
	for _, c := range clients {
		g.Go(func() error {
			return c.Stop(ctx)
		})
	}
	return g.Wait()
}

// converge diffs the live backend set against desired and applies the
// minimal change: backends whose descriptor is unchanged keep their running
// client and session, so an unrelated edit never interrupts them. Called
// with convergeMu held.
func (r *Registry) converge(ctx context.Context, desired map[string]config.ServerConfig) {
	// Removed backends first, so their resources are released before any
	// replacement work starts.
	for _, c := range r.List() {
		if _, ok := desired[c.Name()]; !ok {
			logger.Infof("Backend %s removed from configuration, stopping", c.Name())
			r.stopAndDelete(ctx, c)
		}
	}

	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := desired[name]

		if existing, err := r.Get(name); err == nil {
			if existing.Config().Equal(cfg) {
				continue
			}
			logger.Infof("Backend %s configuration changed, recreating", name)
			r.stopAndDelete(ctx, existing)
		}

		r.startAndAdd(ctx, name, cfg)
	}
}

// startAndAdd builds and starts one backend client and registers it. A
// malformed descriptor is skipped; a start failure leaves the failed client
// registered so its state is observable, the router skips it anyway.
func (r *Registry) startAndAdd(ctx context.Context, name string, cfg config.ServerConfig) {
	c, err := r.factory(name, cfg)
	if err != nil {
		logger.Warnf("Skipping backend %s: %v", name, err)
		return
	}

	r.mu.Lock()
	r.clients[name] = c
	r.mu.Unlock()

	if err := c.Start(ctx); err != nil {
		logger.Warnf("Failed to start backend %s: %v", name, err)
	}
}

// stopAndDelete removes one client from the registry and stops it. Stop
// errors are logged; removal is not rolled back.
func (r *Registry) stopAndDelete(ctx context.Context, c bridge.BackendClient) {
	r.mu.Lock()
	delete(r.clients, c.Name())
	r.mu.Unlock()

	if err := c.Stop(ctx); err != nil {
		logger.Warnf("Failed to stop backend %s: %v", c.Name(), err)
	}
}
