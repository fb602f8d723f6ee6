// Package docker provides the Docker-specific implementation of the
// container runtime.
package docker

import "fmt"

// Error types for container operations
var (
	// ErrContainerNotFound is returned when attempting to operate on a
	// container that does not exist in the runtime.
	ErrContainerNotFound = fmt.Errorf("container not found")

	// ErrContainerNotRunning is returned when attempting to perform an
	// operation that requires a running container (e.g., attaching to
	// stdin/stdout).
	ErrContainerNotRunning = fmt.Errorf("container not running")

	// ErrRuntimeNotFound is returned when the container runtime
	// (Docker/Podman) is not available on the system or cannot be accessed.
	ErrRuntimeNotFound = fmt.Errorf("container runtime not found")

	// ErrAttachFailed is returned when the attempt to attach to a
	// container's stdin/stdout/stderr streams fails.
	ErrAttachFailed = fmt.Errorf("failed to attach to container")
)

// ContainerError represents a detailed error related to container
// operations. It provides context about the specific container and
// operation that failed.
type ContainerError struct {
	// Err is the underlying error that occurred
	Err error

	// ContainerID is the ID of the container involved in the error.
	// This may be empty if the error occurred before a container was created.
	ContainerID string

	// Message is a human-readable description of what went wrong
	Message string
}

// Error returns a formatted error message that includes the container ID
// (if available) and additional context about what went wrong.
func (e *ContainerError) Error() string {
	if e.Message != "" {
		if e.ContainerID != "" {
			return fmt.Sprintf("%s: %s (container: %s)", e.Err, e.Message, e.ContainerID)
		}
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}

	if e.ContainerID != "" {
		return fmt.Sprintf("%s (container: %s)", e.Err, e.ContainerID)
	}

	return e.Err.Error()
}

// Unwrap returns the underlying error, allowing ContainerError to work with
// the standard errors.Is and errors.As functions.
func (e *ContainerError) Unwrap() error {
	return e.Err
}

// NewContainerError creates a new ContainerError with the specified details.
func NewContainerError(err error, containerID, message string) *ContainerError {
	return &ContainerError{
		Err:         err,
		ContainerID: containerID,
		Message:     message,
	}
}
