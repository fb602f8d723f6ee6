// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/stacklok/mcp-bridge/pkg/api/v1"
	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/config"
)

// fakeBackend is a static backend for handler tests.
type fakeBackend struct {
	name  string
	cfg   config.ServerConfig
	state bridge.State
}

func (f *fakeBackend) Name() string                { return f.name }
func (f *fakeBackend) Config() config.ServerConfig { return f.cfg }
func (f *fakeBackend) State() bridge.State         { return f.state }
func (*fakeBackend) Session() bridge.Session       { return nil }
func (*fakeBackend) Start(context.Context) error   { return nil }
func (*fakeBackend) Stop(context.Context) error    { return nil }

// fakeRegistry implements the registry surface of the server API.
type fakeRegistry struct {
	backends  []bridge.BackendClient
	reloadErr error
	updated   map[string]config.ServerConfig
}

func (r *fakeRegistry) List() []bridge.BackendClient { return r.backends }

func (r *fakeRegistry) Get(name string) (bridge.BackendClient, error) {
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", bridge.ErrBackendNotFound, name)
}

func (r *fakeRegistry) Reload(context.Context) error { return r.reloadErr }

func (r *fakeRegistry) Update(_ context.Context, servers map[string]config.ServerConfig) error {
	r.updated = servers
	return nil
}

// fakeInstaller records install requests and optionally fails some names.
type fakeInstaller struct {
	installed []string
	failFor   string
}

func (i *fakeInstaller) EnsureInstalled(_ context.Context, name string, _ config.ServerConfig) error {
	if name == i.failFor {
		return errors.New("install failed")
	}
	i.installed = append(i.installed, name)
	return nil
}

func TestListServers(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{backends: []bridge.BackendClient{
		&fakeBackend{name: "alpha", cfg: config.ServerConfig{Command: "npx"}, state: bridge.StateConnected},
		&fakeBackend{name: "beta", cfg: config.ServerConfig{URL: "http://localhost:3000/sse"}, state: bridge.StateFailed},
	}}
	srv := httptest.NewServer(v1.ServersRouter(reg, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "alpha", statuses[0]["name"])
	assert.Equal(t, "stdio", statuses[0]["transport"])
	assert.Equal(t, "connected", statuses[0]["state"])
	assert.Equal(t, "sse", statuses[1]["transport"])
	assert.Equal(t, "failed", statuses[1]["state"])
}

func TestGetServer(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{backends: []bridge.BackendClient{
		&fakeBackend{name: "alpha", cfg: config.ServerConfig{Command: "npx"}, state: bridge.StateConnected},
	}}
	srv := httptest.NewServer(v1.ServersRouter(reg, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/alpha")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestReloadServers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		reloadErr      error
		expectedStatus int
	}{
		{
			name:           "successful reload",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "reload in progress maps to 409",
			reloadErr:      bridge.ErrReloadInProgress,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "load failure maps to 500",
			reloadErr:      errors.New("config endpoint unreachable"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(v1.ServersRouter(&fakeRegistry{reloadErr: tt.reloadErr}, nil))
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/reload", "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestUpdateServers(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	installer := &fakeInstaller{}
	srv := httptest.NewServer(v1.ServersRouter(reg, installer))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/", strings.NewReader(`{
		"mcpServers": {
			"fetch": {"command": "npx", "args": ["-y", "fetch-server"]}
		}
	}`))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"fetch"}, installer.installed)
	require.Contains(t, reg.updated, "fetch")
}

func TestUpdateServers_FailedInstallDropsEntry(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	installer := &fakeInstaller{failFor: "broken"}
	srv := httptest.NewServer(v1.ServersRouter(reg, installer))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/", strings.NewReader(`{
		"mcpServers": {
			"good":   {"command": "npx"},
			"broken": {"command": "npx"}
		}
	}`))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NotNil(t, reg.updated)
	assert.Contains(t, reg.updated, "good")
	assert.NotContains(t, reg.updated, "broken")
}

func TestUpdateServers_InvalidBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(v1.ServersRouter(&fakeRegistry{}, nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/", strings.NewReader(`{"mcpServers":`))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(v1.HealthcheckRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(v1.VersionRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Contains(t, info, "version")
}
