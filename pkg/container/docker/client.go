package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/stacklok/mcp-bridge/pkg/container/runtime"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// Common socket paths
const (
	// PodmanSocketPath is the default Podman socket path
	PodmanSocketPath = "/var/run/podman/podman.sock"
	// PodmanXDGRuntimeSocketPath is the XDG runtime Podman socket path
	PodmanXDGRuntimeSocketPath = "podman/podman.sock"
	// DockerSocketPath is the default Docker socket path
	DockerSocketPath = "/var/run/docker.sock"
	// DockerDesktopMacSocketPath is the Docker Desktop socket path on macOS
	DockerDesktopMacSocketPath = ".docker/run/docker.sock"
)

// Environment variable names
const (
	// DockerSocketEnv is the environment variable for custom Docker socket path
	DockerSocketEnv = "MCP_BRIDGE_DOCKER_SOCKET"
	// PodmanSocketEnv is the environment variable for custom Podman socket path
	PodmanSocketEnv = "MCP_BRIDGE_PODMAN_SOCKET"
)

// stopTimeoutSeconds is how long the runtime waits for a container to exit
// before killing it.
const stopTimeoutSeconds = 30

var supportedSocketPaths = []runtime.Type{runtime.TypePodman, runtime.TypeDocker}

// Client implements the runtime.Runtime interface for container operations.
type Client struct {
	runtimeType runtime.Type
	socketPath  string
	client      *client.Client
}

// NewClient creates a new container client, trying Podman first and Docker
// as fallback. Once a socket is found the runtime is pinged; if the ping
// fails the next runtime is tried.
func NewClient(ctx context.Context) (*Client, error) {
	var lastErr error

	for _, sp := range supportedSocketPaths {
		socketPath, runtimeType, err := findContainerSocket(sp)
		if err != nil {
			logger.Debugf("Failed to find socket for %s: %v", sp, err)
			lastErr = err
			continue
		}

		c, err := NewClientWithSocketPath(ctx, socketPath, runtimeType)
		if err != nil {
			logger.Debugf("Failed to create client for %s: %v", sp, err)
			lastErr = err
			continue
		}

		return c, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no supported container runtime available: %w", lastErr)
	}
	return nil, NewContainerError(ErrRuntimeNotFound, "", "no supported container runtime found/running")
}

// NewClientWithSocketPath creates a new container client with a specific socket path.
func NewClientWithSocketPath(ctx context.Context, socketPath string, runtimeType runtime.Type) (*Client, error) {
	// Custom HTTP client that dials the Unix socket.
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
	}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
		client.WithHost("unix://" + socketPath),
	}

	dockerClient, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewContainerError(err, "", fmt.Sprintf("failed to create client: %v", err))
	}

	c := &Client{
		runtimeType: runtimeType,
		socketPath:  socketPath,
		client:      dockerClient,
	}

	if err := c.IsRunning(ctx); err != nil {
		return nil, err
	}
	logger.Debugf("Successfully connected to %s runtime", c.runtimeType)

	return c, nil
}

// findContainerSocket finds a container socket path for the given runtime,
// checking environment overrides first.
func findContainerSocket(rt runtime.Type) (string, runtime.Type, error) {
	if customSocketPath := os.Getenv(PodmanSocketEnv); customSocketPath != "" {
		if _, err := os.Stat(customSocketPath); err != nil {
			return "", runtime.TypePodman, fmt.Errorf("invalid Podman socket path: %w", err)
		}
		return customSocketPath, runtime.TypePodman, nil
	}

	if customSocketPath := os.Getenv(DockerSocketEnv); customSocketPath != "" {
		if _, err := os.Stat(customSocketPath); err != nil {
			return "", runtime.TypeDocker, fmt.Errorf("invalid Docker socket path: %w", err)
		}
		return customSocketPath, runtime.TypeDocker, nil
	}

	if rt == runtime.TypePodman {
		if _, err := os.Stat(PodmanSocketPath); err == nil {
			return PodmanSocketPath, runtime.TypePodman, nil
		}

		if xdgRuntimeDir := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntimeDir != "" {
			xdgSocketPath := filepath.Join(xdgRuntimeDir, PodmanXDGRuntimeSocketPath)
			if _, err := os.Stat(xdgSocketPath); err == nil {
				return xdgSocketPath, runtime.TypePodman, nil
			}
		}

		if home := os.Getenv("HOME"); home != "" {
			userSocketPath := filepath.Join(home, ".local/share/containers/podman/machine/podman.sock")
			if _, err := os.Stat(userSocketPath); err == nil {
				return userSocketPath, runtime.TypePodman, nil
			}
		}
	}

	if rt == runtime.TypeDocker {
		if _, err := os.Stat(DockerSocketPath); err == nil {
			return DockerSocketPath, runtime.TypeDocker, nil
		}

		if home := os.Getenv("HOME"); home != "" {
			desktopSocketPath := filepath.Join(home, DockerDesktopMacSocketPath)
			if _, err := os.Stat(desktopSocketPath); err == nil {
				return desktopSocketPath, runtime.TypeDocker, nil
			}
		}
	}

	return "", rt, NewContainerError(ErrRuntimeNotFound, "", fmt.Sprintf("no %s socket found", rt))
}

// DeployWorkload creates and starts a workload with attached standard
// streams. The image is pulled when not available locally.
func (c *Client) DeployWorkload(
	ctx context.Context,
	image, name string,
	command []string,
	envVars, labels map[string]string,
) (string, error) {
	if err := c.ensureImage(ctx, image); err != nil {
		return "", err
	}

	config := &container.Config{
		Image:        image,
		Cmd:          command,
		Env:          convertEnvVars(envVars),
		Labels:       labels,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		OpenStdin:    true,
		Tty:          false,
	}

	resp, err := c.client.ContainerCreate(ctx, config, &container.HostConfig{}, nil, nil, name)
	if err != nil {
		return "", NewContainerError(err, "", fmt.Sprintf("failed to create container: %v", err))
	}

	if err := c.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Don't leave a created-but-unstarted container behind.
		if removeErr := c.RemoveWorkload(ctx, resp.ID); removeErr != nil {
			logger.Warnf("Failed to remove container after start failure: %v", removeErr)
		}
		return "", NewContainerError(err, resp.ID, fmt.Sprintf("failed to start container: %v", err))
	}

	return resp.ID, nil
}

// AttachToWorkload attaches to a workload's standard streams. The returned
// reader carries demultiplexed stdout only; stderr is discarded because the
// MCP protocol stream must not be interleaved with diagnostics.
func (c *Client) AttachToWorkload(ctx context.Context, workloadID string) (io.WriteCloser, io.ReadCloser, error) {
	running, err := c.IsWorkloadRunning(ctx, workloadID)
	if err != nil {
		return nil, nil, err
	}
	if !running {
		return nil, nil, NewContainerError(ErrContainerNotRunning, workloadID, "workload is not running")
	}

	resp, err := c.client.ContainerAttach(ctx, workloadID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, nil, NewContainerError(ErrAttachFailed, workloadID, fmt.Sprintf("failed to attach to workload: %v", err))
	}

	stdoutReader, stdoutWriter := io.Pipe()

	go func() {
		defer stdoutWriter.Close()
		defer resp.Close()

		// Demultiplex the container streams; Tty is false so stdout and
		// stderr arrive on one multiplexed connection.
		_, err := stdcopy.StdCopy(stdoutWriter, io.Discard, resp.Reader)
		if err != nil && err != io.EOF {
			logger.Debugf("Error demultiplexing container streams: %v", err)
		}
	}()

	return resp.Conn, stdoutReader, nil
}

// StopWorkload stops a workload.
// If the workload is already stopped or gone, it returns success.
func (c *Client) StopWorkload(ctx context.Context, workloadID string) error {
	running, err := c.IsWorkloadRunning(ctx, workloadID)
	if err != nil {
		var containerErr *ContainerError
		if errors.As(err, &containerErr) && errors.Is(containerErr.Err, ErrContainerNotFound) {
			return nil
		}
		return err
	}
	if !running {
		return nil
	}

	timeoutSeconds := stopTimeoutSeconds
	if err := c.client.ContainerStop(ctx, workloadID, container.StopOptions{Timeout: &timeoutSeconds}); err != nil {
		return NewContainerError(err, workloadID, fmt.Sprintf("failed to stop workload: %v", err))
	}
	return nil
}

// RemoveWorkload removes a workload.
// If the workload doesn't exist, it returns success.
func (c *Client) RemoveWorkload(ctx context.Context, workloadID string) error {
	err := c.client.ContainerRemove(ctx, workloadID, container.RemoveOptions{
		Force: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return NewContainerError(err, workloadID, fmt.Sprintf("failed to remove workload: %v", err))
	}
	return nil
}

// IsWorkloadRunning checks if a workload is running.
func (c *Client) IsWorkloadRunning(ctx context.Context, workloadID string) (bool, error) {
	info, err := c.client.ContainerInspect(ctx, workloadID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, NewContainerError(ErrContainerNotFound, workloadID, "workload not found")
		}
		return false, NewContainerError(err, workloadID, fmt.Sprintf("failed to inspect workload: %v", err))
	}

	return info.State != nil && info.State.Running, nil
}

// IsRunning checks the health of the container runtime itself.
func (c *Client) IsRunning(ctx context.Context) error {
	if _, err := c.client.Ping(ctx); err != nil {
		return NewContainerError(ErrRuntimeNotFound, "", fmt.Sprintf("failed to ping %s: %v", c.runtimeType, err))
	}
	return nil
}

// ensureImage pulls the image when it is not available locally.
func (c *Client) ensureImage(ctx context.Context, imageName string) error {
	filterArgs := filters.NewArgs()
	filterArgs.Add("reference", imageName)

	images, err := c.client.ImageList(ctx, dockerimage.ListOptions{Filters: filterArgs})
	if err != nil {
		return NewContainerError(err, "", fmt.Sprintf("failed to list images: %v", err))
	}
	if len(images) > 0 {
		return nil
	}

	logger.Infof("Pulling image %s", imageName)
	pull, err := c.client.ImagePull(ctx, imageName, dockerimage.PullOptions{})
	if err != nil {
		return NewContainerError(err, "", fmt.Sprintf("failed to pull image: %v", err))
	}
	defer pull.Close()

	// Drain the pull stream; the daemon aborts the pull if the client stops reading.
	if _, err := io.Copy(io.Discard, pull); err != nil {
		return NewContainerError(err, "", fmt.Sprintf("failed to pull image: %v", err))
	}
	return nil
}

// convertEnvVars converts a map of environment variables to a slice.
func convertEnvVars(envVars map[string]string) []string {
	env := make([]string, 0, len(envVars))
	for k, v := range envVars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
