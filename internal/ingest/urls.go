// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package ingest validates channel URLs and runs detached channel
// ingestion: enumerate the channel, resolve its name, and batch-insert
// its videos as pending queue work.
package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidChannelURL is returned for URLs that do not name a channel,
// user, handle, or playlist on a supported host.
var ErrInvalidChannelURL = errors.New("invalid channel URL")

var supportedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// NormalizeChannelURL validates raw and returns its canonical form:
// https scheme, www.youtube.com host, no trailing slash. Two inputs that
// name the same channel normalize to the same string, which backs the
// store's URL uniqueness.
func NormalizeChannelURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL: %w", ErrInvalidChannelURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidChannelURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q: %w", u.Scheme, ErrInvalidChannelURL)
	}

	host := strings.ToLower(u.Host)
	// Repair doubled prefixes from hand-edited URLs.
	host = strings.Replace(host, "www.www.", "www.", 1)
	if !supportedHosts[host] {
		return "", fmt.Errorf("unsupported host %q: %w", host, ErrInvalidChannelURL)
	}

	// youtu.be short links are almost always single videos; a channel
	// shape is required on every host.
	if !validChannelPath(u.Path, u.Query()) {
		return "", fmt.Errorf("path %q does not name a channel: %w", u.Path, ErrInvalidChannelURL)
	}

	u.Scheme = "https"
	u.Host = "www.youtube.com"
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String(), nil
}

// validChannelPath accepts the channel-shaped paths the extractor can
// enumerate: /c/, /channel/, /user/, /@handle, and playlists.
func validChannelPath(path string, query url.Values) bool {
	switch {
	case strings.HasPrefix(path, "/c/") && len(path) > len("/c/"):
		return true
	case strings.HasPrefix(path, "/channel/") && len(path) > len("/channel/"):
		return true
	case strings.HasPrefix(path, "/user/") && len(path) > len("/user/"):
		return true
	case strings.HasPrefix(path, "/@") && len(path) > len("/@"):
		return true
	case strings.HasPrefix(path, "/playlist"):
		return query.Get("list") != ""
	}
	return false
}
