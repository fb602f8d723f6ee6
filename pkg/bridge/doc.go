// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridge contains the shared domain types for mcp-bridge: the
// backend lifecycle states, the session capability surface, and the
// sentinel errors used across the client, registry, and router subpackages.
package bridge
