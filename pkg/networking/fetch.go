// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package networking provides bounded HTTP helpers used by the
// configuration loader.
package networking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxResponseSize is the default maximum response body size (1MB).
	DefaultMaxResponseSize = 1024 * 1024

	// DefaultErrorPreviewSize is the maximum size of error body preview in HTTPError.
	DefaultErrorPreviewSize = 1024

	// DefaultFetchTimeout bounds a single fetch round-trip.
	DefaultFetchTimeout = 30 * time.Second

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"
)

// HTTPError represents an HTTP error response with status code and body preview.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is a preview of the response body (limited to DefaultErrorPreviewSize).
	Body string

	// URL is the requested URL.
	URL string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP request to %s failed with status %d", e.URL, e.StatusCode)
}

// IsHTTPError checks if an error is an HTTPError with the specified status code.
// If statusCode is 0, it matches any HTTPError.
func IsHTTPError(err error, statusCode int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if statusCode == 0 {
		return true
	}
	return httpErr.StatusCode == statusCode
}

// FetchJSON performs a GET request against url and unmarshals the JSON
// response body into T. The body read is capped at DefaultMaxResponseSize so
// a misbehaving endpoint cannot exhaust memory.
func FetchJSON[T any](ctx context.Context, httpClient *http.Client, url string, headers http.Header) (T, error) {
	var zero T

	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeJSON)
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxResponseSize))
	if err != nil {
		return zero, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := body
		if len(preview) > DefaultErrorPreviewSize {
			preview = preview[:DefaultErrorPreviewSize]
		}
		return zero, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(preview),
			URL:        url,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "json") {
		return zero, fmt.Errorf("unexpected content type %q from %s", contentType, url)
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return zero, fmt.Errorf("failed to parse JSON from %s: %w", url, err)
	}
	return result, nil
}
