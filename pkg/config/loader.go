// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/mcp-bridge/pkg/logger"
	"github.com/stacklok/mcp-bridge/pkg/networking"
)

// Loader produces a validated configuration from all configured sources.
// The registry calls Load once at startup and again on every reload.
type Loader interface {
	// Load reads, merges, and validates the configuration.
	// A failure leaves the caller's current configuration untouched.
	Load(ctx context.Context) (*Config, error)
}

// multiSourceLoader merges configuration from local files, an optional
// remote HTTP endpoint, and an optional inline JSON document, in that
// order. Later sources override earlier ones.
type multiSourceLoader struct {
	filePaths  []string
	httpURL    string
	inlineJSON string
	httpClient *http.Client
}

// LoaderOption configures a Loader created by NewLoader.
type LoaderOption func(*multiSourceLoader)

// WithFile appends a configuration file source. JSON files may contain
// comments and trailing commas; YAML files are detected by extension.
func WithFile(path string) LoaderOption {
	return func(l *multiSourceLoader) {
		l.filePaths = append(l.filePaths, path)
	}
}

// WithHTTPURL sets a remote JSON configuration source.
func WithHTTPURL(url string) LoaderOption {
	return func(l *multiSourceLoader) {
		l.httpURL = url
	}
}

// WithInlineJSON sets an inline JSON configuration document, merged last.
func WithInlineJSON(doc string) LoaderOption {
	return func(l *multiSourceLoader) {
		l.inlineJSON = doc
	}
}

// WithHTTPClient overrides the HTTP client used for the remote source.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *multiSourceLoader) {
		l.httpClient = client
	}
}

// NewLoader creates a Loader over the given sources.
func NewLoader(opts ...LoaderOption) Loader {
	l := &multiSourceLoader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.
func (l *multiSourceLoader) Load(ctx context.Context) (*Config, error) {
	var documents []map[string]any

	for _, path := range l.filePaths {
		doc, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		logger.Debugf("Loaded config from %s", path)
		documents = append(documents, doc)
	}

	if l.httpURL != "" {
		doc, err := networking.FetchJSON[map[string]any](ctx, l.httpClient, l.httpURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: remote config: %w", ErrInvalidConfig, err)
		}
		logger.Debugf("Loaded config from %s", l.httpURL)
		documents = append(documents, doc)
	}

	if l.inlineJSON != "" {
		var doc map[string]any
		if err := json.Unmarshal([]byte(l.inlineJSON), &doc); err != nil {
			return nil, fmt.Errorf("%w: inline config: %w", ErrInvalidConfig, err)
		}
		documents = append(documents, doc)
	}

	merged := map[string]any{}
	for _, doc := range documents {
		if err := mergo.Merge(&merged, doc, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("%w: merging sources: %w", ErrInvalidConfig, err)
		}
	}

	expanded := expandEnv(merged)

	// Round-trip through JSON to bind the merged document to the typed model.
	raw, err := json.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("%w: applying defaults: %w", ErrInvalidConfig, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerConfig{}
	}

	if cfg.Network.Port < 0 || cfg.Network.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, cfg.Network.Port)
	}
	for name := range cfg.Servers {
		if name == "" {
			return nil, fmt.Errorf("%w: empty server name", ErrInvalidConfig)
		}
	}

	return cfg, nil
}

// loadFile reads one configuration file and parses it into a generic
// document. JSON files are run through hujson first so that comments and
// trailing commas are tolerated.
func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := json.Unmarshal(standardized, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return doc, nil
}

// envRefPattern matches ${VAR} references. Only the braced form is
// substituted; a bare $VAR is an ordinary string.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv walks the document and substitutes ${VAR} references in string
// values with the process environment. Unset variables are left verbatim so
// a missing secret is visible in the resulting config rather than silently
// becoming an empty string.
func expandEnv(value any) any {
	switch v := value.(type) {
	case string:
		return envRefPattern.ReplaceAllStringFunc(v, func(ref string) string {
			key := ref[2 : len(ref)-1]
			if resolved, ok := os.LookupEnv(key); ok {
				return resolved
			}
			return ref
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = expandEnv(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = expandEnv(val)
		}
		return out
	default:
		return v
	}
}
