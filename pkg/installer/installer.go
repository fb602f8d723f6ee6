// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package installer installs backend MCP server packages before they are
// added to the bridge configuration.
//
// Only smithery-distributed backends need an install step: descriptors that
// launch `npx ... @smithery/cli ... run <package>` are installed through the
// smithery CLI. Every other descriptor shape is considered pre-installed.
package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/stacklok/mcp-bridge/pkg/config"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// smitheryAnswers is fed to the CLI's interactive prompts: consent to the
// data-sharing question, then empty values for optional credentials.
const smitheryAnswers = "Yes\n\n\n"

// runCommand executes a command and returns its combined output. Abstracted
// so tests never shell out.
type runCommand func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

// Installer installs smithery-distributed backend packages.
type Installer struct {
	run runCommand
}

// Option configures an Installer.
type Option func(*Installer)

// WithRunner overrides command execution. Intended for tests.
func WithRunner(run runCommand) Option {
	return func(i *Installer) {
		i.run = run
	}
}

// New creates an installer that shells out to npx.
func New(opts ...Option) *Installer {
	i := &Installer{
		run: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdin = strings.NewReader(stdin)
			return cmd.CombinedOutput()
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// EnsureInstalled installs the backend's package when the descriptor is a
// smithery-run entry. Descriptors that do not need installation succeed
// immediately.
func (i *Installer) EnsureInstalled(ctx context.Context, name string, cfg config.ServerConfig) error {
	if !needsInstall(cfg) {
		logger.Debugf("Backend %s does not require installation", name)
		return nil
	}

	pkg := runPackageName(cfg.Args)
	if pkg == "" {
		return fmt.Errorf("could not determine package name for backend %s", name)
	}

	logger.Infof("Installing package %s for backend %s", pkg, name)
	out, err := i.run(ctx, smitheryAnswers,
		"npx", "-y", "@smithery/cli@latest", "install", pkg, "--client", "claude")
	if err != nil {
		return fmt.Errorf("failed to install package %s for backend %s: %w (output: %s)",
			pkg, name, err, strings.TrimSpace(string(out)))
	}

	logger.Infof("Successfully installed package %s for backend %s", pkg, name)
	return nil
}

// needsInstall reports whether the descriptor launches a backend through the
// smithery CLI.
func needsInstall(cfg config.ServerConfig) bool {
	if cfg.Command != "npx" || len(cfg.Args) < 3 {
		return false
	}
	for _, arg := range cfg.Args {
		if strings.Contains(arg, "@smithery/cli") {
			return true
		}
	}
	return false
}

// runPackageName extracts the package argument following the CLI's "run"
// subcommand.
func runPackageName(args []string) string {
	for i, arg := range args {
		if arg == "run" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
