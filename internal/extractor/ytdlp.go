// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/transcriptory/transcriptory/internal/config"
	"github.com/transcriptory/transcriptory/internal/faults"
	"github.com/transcriptory/transcriptory/internal/logging"
)

// YtDlp extracts channel listings and transcripts by invoking the
// yt-dlp binary. A single rate limiter and circuit breaker guard all
// invocations, so worker concurrency cannot multiply outbound pressure.
type YtDlp struct {
	cfg     *config.ExtractorConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewYtDlp returns a YtDlp configured from cfg.
func NewYtDlp(cfg *config.ExtractorConfig) *YtDlp {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "yt-dlp",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Permanent failures are properties of individual videos, not
		// of the upstream service; they must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || faults.Classify(err) == faults.Permanent
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Extractor circuit breaker state change")
		},
	})

	return &YtDlp{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: breaker,
	}
}

// run invokes yt-dlp once behind the rate limiter and breaker, returning
// its stdout. On failure the stderr tail is folded into the error so the
// classifier can see the platform's message.
func (y *YtDlp) run(ctx context.Context, args ...string) ([]byte, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	return y.breaker.Execute(func() ([]byte, error) {
		runCtx, cancel := context.WithTimeout(ctx, y.cfg.Timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, y.cfg.BinPath, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if runCtx.Err() != nil {
				return nil, fmt.Errorf("yt-dlp timeout after %s: %w", y.cfg.Timeout, runCtx.Err())
			}
			return nil, fmt.Errorf("yt-dlp failed: %s: %w", stderrTail(stderr.String()), err)
		}
		return stdout.Bytes(), nil
	})
}

// withRetry runs op up to the configured attempt count with exponential
// backoff and jitter. Permanent failures and context cancellation stop
// the loop immediately.
func (y *YtDlp) withRetry(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < y.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := min(time.Second<<(attempt-1), 30*time.Second)
			delay += rand.N(500 * time.Millisecond)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if faults.Classify(lastErr) == faults.Permanent {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
		logging.Debug().
			Err(lastErr).
			Int("attempt", attempt+1).
			Msg("Extractor call failed, retrying")
	}
	return lastErr
}

// flatEntry is one entry of a --flat-playlist dump. Channel URLs resolve
// to a playlist of tabs, each holding its own entries, so the type nests.
type flatEntry struct {
	ID      string      `json:"id"`
	URL     string      `json:"url"`
	Title   string      `json:"title"`
	Entries []flatEntry `json:"entries"`
}

type flatPlaylist struct {
	Title    string      `json:"title"`
	Channel  string      `json:"channel"`
	Uploader string      `json:"uploader"`
	Entries  []flatEntry `json:"entries"`
}

// ChannelInfo implements Extractor.
func (y *YtDlp) ChannelInfo(ctx context.Context, channelURL string) (*ChannelInfo, error) {
	var out []byte
	err := y.withRetry(ctx, func(ctx context.Context) error {
		var runErr error
		out, runErr = y.run(ctx, "--flat-playlist", "--dump-single-json", "--no-warnings", channelURL)
		return runErr
	})
	if err != nil {
		return nil, err
	}

	var playlist flatPlaylist
	if err := json.Unmarshal(out, &playlist); err != nil {
		return nil, fmt.Errorf("failed to parse channel listing: %w", err)
	}

	info := &ChannelInfo{Name: channelName(&playlist)}
	collectEntries(playlist.Entries, &info.Videos)
	return info, nil
}

func channelName(p *flatPlaylist) string {
	switch {
	case p.Channel != "":
		return p.Channel
	case p.Uploader != "":
		return p.Uploader
	default:
		return p.Title
	}
}

// collectEntries flattens the tab hierarchy into a video list, keeping
// first-seen order.
func collectEntries(entries []flatEntry, out *[]VideoEntry) {
	for _, e := range entries {
		if len(e.Entries) > 0 {
			collectEntries(e.Entries, out)
			continue
		}
		url := e.URL
		if url == "" && e.ID != "" {
			url = "https://www.youtube.com/watch?v=" + e.ID
		}
		if url == "" {
			continue
		}
		*out = append(*out, VideoEntry{URL: url, Title: e.Title})
	}
}

// Transcript implements Extractor. Subtitles are written into a
// throwaway directory, the best language match is read back, and the VTT
// markup is cleaned to plain text.
func (y *YtDlp) Transcript(ctx context.Context, videoURL string) (*Transcript, error) {
	var result *Transcript
	err := y.withRetry(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = y.fetchTranscript(ctx, videoURL)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (y *YtDlp) fetchTranscript(ctx context.Context, videoURL string) (*Transcript, error) {
	dir, err := os.MkdirTemp("", "transcriptory-subs-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create subtitle directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.Warn().Err(err).Str("dir", dir).Msg("Failed to remove subtitle directory")
		}
	}()

	args := []string{
		"--skip-download",
		"--write-subs",
		"--sub-langs", strings.Join(y.cfg.PreferredLanguages, ","),
		"--sub-format", "vtt",
		"--no-warnings",
		"-o", filepath.Join(dir, "media.%(ext)s"),
	}
	if y.cfg.IncludeAutoGenerated {
		args = append(args, "--write-auto-subs")
	}
	args = append(args, videoURL)

	if _, err := y.run(ctx, args...); err != nil {
		return nil, err
	}

	path, language, err := pickSubtitleFile(dir, y.cfg.PreferredLanguages)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path is inside our temp dir
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	content := CleanVTT(string(raw))
	if content == "" {
		return nil, fmt.Errorf("video %s: %w", videoURL, ErrNoTranscript)
	}
	return &Transcript{Language: language, Content: content}, nil
}

// pickSubtitleFile chooses the downloaded track matching the earliest
// preferred language, falling back to whatever yt-dlp produced.
func pickSubtitleFile(dir string, preferred []string) (path, language string, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, "media.*.vtt"))
	if err != nil {
		return "", "", fmt.Errorf("failed to scan subtitle directory: %w", err)
	}
	if len(matches) == 0 {
		return "", "", ErrNoTranscript
	}

	langOf := func(p string) string {
		base := strings.TrimSuffix(filepath.Base(p), ".vtt")
		return strings.TrimPrefix(base, "media.")
	}

	for _, lang := range preferred {
		for _, m := range matches {
			got := langOf(m)
			if got == lang || strings.HasPrefix(got, lang+"-") {
				return m, got, nil
			}
		}
	}
	return matches[0], langOf(matches[0]), nil
}

// stderrTail keeps the last line of yt-dlp's stderr, which carries the
// actionable error message.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) == 0 {
		return "no error output"
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "no error output"
	}
	return last
}

var _ Extractor = (*YtDlp)(nil)

// ErrCircuitOpen reports whether the error came from an open breaker,
// which workers treat as transient backpressure.
func ErrCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
