// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package faults classifies extraction errors as permanent or transient.
//
// The classification decides retry behavior: transient failures consume
// one attempt and requeue, permanent failures go terminal immediately.
// Matching is case-insensitive substring matching against the error
// text, with permanent patterns checked first so an error mentioning
// both ("video unavailable after network retry") goes terminal.
package faults

import (
	"strings"
)

// Class is the retry classification of a failure.
type Class int

const (
	// Transient failures are worth retrying with backoff.
	Transient Class = iota
	// Permanent failures will never succeed no matter how often retried.
	Permanent
)

// String implements fmt.Stringer.
func (c Class) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// permanentPatterns mark failures that no retry can fix: the video is
// gone, gated, or has no transcript to fetch.
var permanentPatterns = []string{
	"private video",
	"unavailable",
	"deleted",
	"age restricted",
	"no subtitles available",
	"no native subtitles",
	"subtitles not available",
	"invalid url",
	"unknown video id",
	"not found",
	"forbidden",
	"http 404",
	"http 403",
}

// transientPatterns mark failures likely to clear on their own.
var transientPatterns = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"http 500",
	"http 502",
	"http 503",
	"rate limit",
	"too many requests",
	"quota exceeded",
}

// Classify maps an error to its retry class. Unrecognized errors default
// to Transient, so an unknown failure mode still gets its retry budget
// before going terminal.
func Classify(err error) Class {
	if err == nil {
		return Transient
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage classifies raw error text, for callers that carry the
// message across a process boundary instead of an error value.
func ClassifyMessage(msg string) Class {
	lower := strings.ToLower(msg)
	for _, p := range permanentPatterns {
		if strings.Contains(lower, p) {
			return Permanent
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return Transient
		}
	}
	return Transient
}
