// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the HTTP API for the MCP bridge.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	v1 "github.com/stacklok/mcp-bridge/pkg/api/v1"
	"github.com/stacklok/mcp-bridge/pkg/bridge/registry"
	"github.com/stacklok/mcp-bridge/pkg/bridge/router"
	"github.com/stacklok/mcp-bridge/pkg/installer"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// Not sure if these values need to be configurable.
const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter assembles the full bridge API handler: middleware stack plus
// every versioned route.
func NewRouter(reg *registry.Registry, rtr *router.Router) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		headersMiddleware,
	)

	routers := map[string]http.Handler{
		"/health":             v1.HealthcheckRouter(),
		"/api/v1beta/version": v1.VersionRouter(),
		"/api/v1beta/tools":   v1.ToolsRouter(rtr),
		"/api/v1beta/prompts": v1.PromptsRouter(rtr),
		"/api/v1beta/servers": v1.ServersRouter(reg, installer.New()),
	}
	for prefix, router := range routers {
		r.Mount(prefix, router)
	}
	return r
}

// Serve starts the bridge API server on the given address and blocks until
// ctx is cancelled. It is assumed that the caller sets up appropriate
// signal handling.
func Serve(
	ctx context.Context,
	address string,
	reg *registry.Registry,
	rtr *router.Router,
) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           NewRouter(reg, rtr),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	logger.Infof("Starting HTTP server on %s", address)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Panicf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Infof("HTTP server stopped")
	return nil
}
