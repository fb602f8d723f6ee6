// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/mcp-bridge/pkg/versions"
)

// VersionRouter sets up the version route.
func VersionRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getVersion)
	return r
}

// getVersion
//
//	@Summary		Get build version
//	@Description	Returns the version, commit, and build date of the bridge
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	versions.VersionInfo
//	@Router			/api/v1beta/version [get]
func getVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(versions.GetVersionInfo()); err != nil {
		http.Error(w, "Failed to encode version info", http.StatusInternalServerError)
	}
}
