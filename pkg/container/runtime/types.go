// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package runtime defines the container runtime interface used by the
// container transport. The docker subpackage provides the Docker/Podman
// implementation.
package runtime

import (
	"context"
	"io"
)

// Type represents the type of container runtime.
type Type string

const (
	// TypePodman represents the Podman runtime.
	TypePodman Type = "podman"

	// TypeDocker represents the Docker runtime.
	TypeDocker Type = "docker"
)

// Runtime defines the interface for container runtimes. A backend client
// owns exactly one workload at a time and is the only caller of these
// methods for that workload.
type Runtime interface {
	// DeployWorkload creates and starts a workload with attached standard
	// streams and returns its ID. The image is pulled if not present.
	DeployWorkload(
		ctx context.Context,
		image, name string,
		command []string,
		envVars, labels map[string]string,
	) (string, error)

	// AttachToWorkload attaches to a running workload's standard streams.
	// The returned reader carries the workload's stdout only; stderr is
	// demultiplexed away from the protocol stream.
	AttachToWorkload(ctx context.Context, workloadID string) (io.WriteCloser, io.ReadCloser, error)

	// StopWorkload stops a workload. Stopping a workload that is already
	// stopped or gone is not an error.
	StopWorkload(ctx context.Context, workloadID string) error

	// RemoveWorkload removes a workload. Removing a workload that is
	// already gone is not an error.
	RemoveWorkload(ctx context.Context, workloadID string) error

	// IsWorkloadRunning checks whether a workload is currently running.
	IsWorkloadRunning(ctx context.Context, workloadID string) (bool, error)

	// IsRunning pings the runtime itself. Used by the health endpoint.
	IsRunning(ctx context.Context) error
}
