// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import "errors"

// Common domain errors used across the bridge subpackages.
// These errors should be checked using errors.Is().
var (
	// ErrBackendNotFound indicates the named backend is not in the registry.
	ErrBackendNotFound = errors.New("backend not found")

	// ErrToolNotFound indicates no connected backend exposes the requested
	// tool. This is a routine routing outcome, not a server fault; the HTTP
	// boundary maps it to 404.
	ErrToolNotFound = errors.New("tool not found")

	// ErrPromptNotFound indicates no connected backend exposes the requested
	// prompt.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrReloadInProgress indicates a reload was requested while another
	// reload is still converging the registry. Reloads are serialized; the
	// caller should retry once the running reload completes.
	ErrReloadInProgress = errors.New("reload already in progress")

	// ErrNotConnected indicates an operation that needs a live session was
	// attempted against a backend without one.
	ErrNotConnected = errors.New("backend not connected")

	// ErrUnsupportedTransport indicates a descriptor shape that no client
	// variant can serve. Construction never falls back to a default
	// transport.
	ErrUnsupportedTransport = errors.New("unsupported transport")
)
