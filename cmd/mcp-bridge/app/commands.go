// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the mcp-bridge command-line
// application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/mcp-bridge/pkg/api"
	"github.com/stacklok/mcp-bridge/pkg/bridge/registry"
	"github.com/stacklok/mcp-bridge/pkg/bridge/router"
	"github.com/stacklok/mcp-bridge/pkg/config"
	"github.com/stacklok/mcp-bridge/pkg/logger"
	"github.com/stacklok/mcp-bridge/pkg/versions"
)

var rootCmd = &cobra.Command{
	Use:               "mcp-bridge",
	DisableAutoGenTag: true,
	Short:             "MCP bridge - expose multiple MCP servers through one HTTP endpoint",
	Long: `MCP bridge manages the lifecycle of a dynamic set of backend MCP
(Model Context Protocol) servers and bridges them to a single HTTP endpoint.

Backends are reached over local subprocesses, SSE event streams, or attached
containers, depending on their configuration entry. The backend set follows
the configuration: a reload converges running backends to the new entries
without interrupting the ones that did not change.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
}

// NewRootCmd creates a new root command for the mcp-bridge CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringSliceP("config", "c", nil,
		"Path to a configuration file (JSON or YAML); may be repeated, later files override earlier ones")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.PersistentFlags().String("config-url", "", "HTTP(S) URL to fetch configuration from")
	if err := viper.BindPFlag("config-url", rootCmd.PersistentFlags().Lookup("config-url")); err != nil {
		logger.Errorf("Error binding config-url flag: %v", err)
	}

	rootCmd.PersistentFlags().String("config-json", "", "Inline JSON configuration document")
	if err := viper.BindPFlag("config-json", rootCmd.PersistentFlags().Lookup("config-json")); err != nil {
		logger.Errorf("Error binding config-json flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

// newLoaderFromFlags builds a configuration loader from the persistent
// flags. At least one source must be given.
func newLoaderFromFlags() (config.Loader, error) {
	var opts []config.LoaderOption
	for _, path := range viper.GetStringSlice("config") {
		opts = append(opts, config.WithFile(path))
	}
	if url := viper.GetString("config-url"); url != "" {
		opts = append(opts, config.WithHTTPURL(url))
	}
	if doc := viper.GetString("config-json"); doc != "" {
		opts = append(opts, config.WithInlineJSON(doc))
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("no configuration source specified, use --config, --config-url, or --config-json")
	}
	return config.NewLoader(opts...), nil
}

// newServeCmd creates the serve command for starting the bridge.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP bridge",
		Long: `Start the MCP bridge: connect to every configured backend MCP server
and expose their tools and prompts through the bridge HTTP API.`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "Listen address (overrides configuration)")
	if err := viper.BindPFlag("host", cmd.Flags().Lookup("host")); err != nil {
		logger.Errorf("Error binding host flag: %v", err)
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides configuration)")
	if err := viper.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
		logger.Errorf("Error binding port flag: %v", err)
	}

	return cmd
}

// runServe implements the serve command logic.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	loader, err := newLoaderFromFlags()
	if err != nil {
		return err
	}

	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	host := cfg.Network.Host
	if flagHost := viper.GetString("host"); flagHost != "" {
		host = flagHost
	}
	port := cfg.Network.Port
	if flagPort := viper.GetInt("port"); flagPort != 0 {
		port = flagPort
	}
	address := fmt.Sprintf("%s:%d", host, port)

	logger.Infof("Starting bridge with %d configured backends", len(cfg.Servers))

	reg := registry.New(loader)
	if err := reg.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize backends: %w", err)
	}
	defer func() {
		// The signal context is already canceled during shutdown; give the
		// backends a fresh deadline to release their transports.
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := reg.Close(stopCtx); err != nil {
			logger.Warnf("Error stopping backends: %v", err)
		}
	}()

	rtr := router.New(reg)

	return api.Serve(ctx, address, reg, rtr)
}

// newValidateCmd creates the validate command for checking configuration.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the bridge configuration for syntax and semantic errors.

This command checks:
- JSON/YAML syntax validity
- That every backend entry identifies exactly one transport
- Listen address validity`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := newLoaderFromFlags()
			if err != nil {
				return err
			}

			cfg, err := loader.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			logger.Infof("Configuration is valid")
			logger.Infof("  Listen address: %s:%d", cfg.Network.Host, cfg.Network.Port)
			for _, name := range cfg.ServerNames() {
				server := cfg.Servers[name]
				transport, _ := server.Transport()
				logger.Infof("  Backend %s: %s", name, transport)
			}
			return nil
		},
	}
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information for mcp-bridge",
		Run: func(_ *cobra.Command, _ []string) {
			info := versions.GetVersionInfo()
			fmt.Printf("mcp-bridge %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildDate)
		},
	}
}
