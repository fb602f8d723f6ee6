// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/config"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// BackendRegistry is the registry surface the server API needs. Implemented
// by the bridge registry; abstracted so handler tests can use fakes.
type BackendRegistry interface {
	List() []bridge.BackendClient
	Get(name string) (bridge.BackendClient, error)
	Reload(ctx context.Context) error
	Update(ctx context.Context, servers map[string]config.ServerConfig) error
}

// PackageInstaller installs backend packages before they join the registry.
type PackageInstaller interface {
	EnsureInstalled(ctx context.Context, name string, cfg config.ServerConfig) error
}

// ServerRoutes defines the routes for the backend server API.
type ServerRoutes struct {
	registry  BackendRegistry
	installer PackageInstaller
}

// ServersRouter creates a new router for the backend server API. The
// installer may be nil to disable package installation on update.
func ServersRouter(registry BackendRegistry, installer PackageInstaller) http.Handler {
	routes := ServerRoutes{registry: registry, installer: installer}

	r := chi.NewRouter()
	r.Get("/", routes.listServers)
	r.Get("/{name}", routes.getServer)
	r.Post("/reload", routes.reloadServers)
	r.Put("/", routes.updateServers)
	return r
}

// serverStatus is the externally visible state of one backend.
type serverStatus struct {
	Name      string           `json:"name"`
	Transport config.Transport `json:"transport"`
	State     bridge.State     `json:"state"`
}

type updateServersRequest struct {
	Servers map[string]config.ServerConfig `json:"mcpServers"`
}

func toServerStatus(c bridge.BackendClient) serverStatus {
	// The descriptor was validated at client construction, so the transport
	// derivation cannot fail here.
	transport, _ := c.Config().Transport()
	return serverStatus{
		Name:      c.Name(),
		Transport: transport,
		State:     c.State(),
	}
}

// listServers
//
//	@Summary		List backend servers
//	@Description	List all configured backends and their lifecycle state
//	@Tags			servers
//	@Produce		json
//	@Success		200	{array}	serverStatus
//	@Router			/api/v1beta/servers [get]
func (s *ServerRoutes) listServers(w http.ResponseWriter, _ *http.Request) {
	clients := s.registry.List()
	statuses := make([]serverStatus, 0, len(clients))
	for _, c := range clients {
		statuses = append(statuses, toServerStatus(c))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		http.Error(w, "Failed to encode server list", http.StatusInternalServerError)
	}
}

// getServer
//
//	@Summary		Get a backend server
//	@Description	Get the lifecycle state of one backend
//	@Tags			servers
//	@Produce		json
//	@Param			name	path	string	true	"Backend name"
//	@Success		200	{object}	serverStatus
//	@Failure		404	{string}	string	"Backend not found"
//	@Router			/api/v1beta/servers/{name} [get]
func (s *ServerRoutes) getServer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	c, err := s.registry.Get(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toServerStatus(c)); err != nil {
		http.Error(w, "Failed to encode server status", http.StatusInternalServerError)
	}
}

// reloadServers
//
//	@Summary		Reload backend configuration
//	@Description	Re-read the configuration sources and converge the backend set
//	@Tags			servers
//	@Success		204	{string}	string	"No Content"
//	@Failure		409	{string}	string	"Reload already in progress"
//	@Router			/api/v1beta/servers/reload [post]
func (s *ServerRoutes) reloadServers(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(r.Context()); err != nil {
		if errors.Is(err, bridge.ErrReloadInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		logger.Errorf("Reload failed: %v", err)
		http.Error(w, "Reload failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateServers
//
//	@Summary		Replace backend configuration
//	@Description	Converge the backend set to the supplied server map
//	@Tags			servers
//	@Accept			json
//	@Success		204	{string}	string	"No Content"
//	@Failure		400	{string}	string	"Invalid request"
//	@Failure		409	{string}	string	"Reload already in progress"
//	@Router			/api/v1beta/servers [put]
func (s *ServerRoutes) updateServers(w http.ResponseWriter, r *http.Request) {
	var req updateServersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Install newly added backends that need it; a failed install drops the
	// entry from this update rather than registering a backend that cannot
	// start.
	if s.installer != nil {
		for name, cfg := range req.Servers {
			if _, err := s.registry.Get(name); err == nil {
				continue
			}
			if err := s.installer.EnsureInstalled(r.Context(), name, cfg); err != nil {
				logger.Warnf("Skipping backend %s: %v", name, err)
				delete(req.Servers, name)
			}
		}
	}

	if err := s.registry.Update(r.Context(), req.Servers); err != nil {
		if errors.Is(err, bridge.ErrReloadInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		logger.Errorf("Update failed: %v", err)
		http.Error(w, "Update failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
