package docker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerError(t *testing.T) {
	t.Parallel()

	err := NewContainerError(ErrContainerNotFound, "abc123", "workload not found")
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.Contains(t, err.Error(), "workload not found")

	var containerErr *ContainerError
	assert.True(t, errors.As(err, &containerErr))
	assert.Equal(t, "abc123", containerErr.ContainerID)
}

func TestContainerError_NoMessageFallsBackToCause(t *testing.T) {
	t.Parallel()

	err := NewContainerError(ErrContainerNotRunning, "abc123", "")
	assert.ErrorIs(t, err, ErrContainerNotRunning)
	assert.Contains(t, err.Error(), ErrContainerNotRunning.Error())
}

func TestConvertEnvVars(t *testing.T) {
	t.Parallel()

	assert.Empty(t, convertEnvVars(nil))
	assert.ElementsMatch(t,
		[]string{"API_KEY=secret", "DEBUG=1"},
		convertEnvVars(map[string]string{"API_KEY": "secret", "DEBUG": "1"}))
}
