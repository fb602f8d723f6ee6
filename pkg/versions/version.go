// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package versions exposes build-time version information for mcp-bridge.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknownStr = "unknown"

// Version information set by build using -ldflags.
var (
	// Version is the current version of mcp-bridge.
	Version = "dev"
	// Commit is the git commit hash of the build.
	Commit = unknownStr
	// BuildDate is the date the binary was built.
	BuildDate = unknownStr
)

// VersionInfo represents the version information of the binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information, filling in whatever the
// build info can provide when ldflags were not set.
func GetVersionInfo() VersionInfo {
	version := Version
	commit := Commit
	buildDate := BuildDate

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == unknownStr {
					commit = setting.Value
				}
			case "vcs.time":
				if buildDate == unknownStr {
					buildDate = setting.Value
				}
			}
		}
	}

	// A dev build with no commit information gets a stable placeholder so
	// user agents and logs stay parseable.
	if version == "dev" && commit == unknownStr {
		version = "build-unknown"
	} else if version == "dev" && len(commit) >= 8 {
		version = fmt.Sprintf("build-%s", commit[:8])
	}

	if buildDate != unknownStr {
		if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
			buildDate = t.Format(time.RFC3339)
		}
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
