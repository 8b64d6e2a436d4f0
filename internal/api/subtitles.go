// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"archive/zip"
	"fmt"
	"net/http"
	"strings"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/logging"
	"github.com/transcriptory/transcriptory/internal/models"
)

// SubtitleListResponse is the body of GET /subtitles.
type SubtitleListResponse struct {
	Subtitles []models.SubtitleSummary `json:"subtitles"`
	Total     int                      `json:"total"`
}

// handleListSubtitles lists transcript summaries without their content.
func (s *Server) handleListSubtitles(w http.ResponseWriter, r *http.Request) {
	filter := database.SubtitleFilter{Limit: queryInt(r, "limit", 100, 1000)}

	if raw := r.URL.Query().Get("video_id"); raw != "" {
		id, ok := parsePositiveInt(raw)
		if !ok {
			respondError(w, http.StatusUnprocessableEntity, "invalid video_id %q", raw)
			return
		}
		filter.VideoID = &id
	}
	if lang := r.URL.Query().Get("language"); lang != "" {
		filter.Language = &lang
	}

	subs, err := s.db.ListSubtitles(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SubtitleListResponse{Subtitles: subs, Total: len(subs)})
}

func (s *Server) handleGetSubtitle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := s.db.GetSubtitle(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// handleDownloadSubtitle serves one transcript as a plain text
// attachment.
func (s *Server) handleDownloadSubtitle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := s.db.GetSubtitle(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	filename := fmt.Sprintf("video_%d_%s.txt", sub.VideoID, sub.Language)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write([]byte(sub.Content)); err != nil {
		logging.Warn().Err(err).Msg("Failed to write subtitle download")
	}
}

// handleDownloadVideoSubtitles serves a video's transcripts: a single
// language downloads as plain text, multiple languages as a ZIP.
func (s *Server) handleDownloadVideoSubtitles(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	video, err := s.db.GetVideo(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	subs, err := s.db.SubtitlesForVideo(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(subs) == 0 {
		respondError(w, http.StatusNotFound, "video %d has no transcripts", id)
		return
	}

	if len(subs) == 1 {
		sub := subs[0]
		filename := fmt.Sprintf("video_%d_%s.txt", sub.VideoID, sub.Language)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if _, err := w.Write([]byte(sub.Content)); err != nil {
			logging.Warn().Err(err).Msg("Failed to write subtitle download")
		}
		return
	}

	archiveName := fmt.Sprintf("video_%d_transcripts.zip", id)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName))

	zw := zip.NewWriter(w)
	for _, sub := range subs {
		name := fmt.Sprintf("%d_%s_%s.txt", sub.VideoID, sanitizeFilename(video.Title), sub.Language)
		f, err := zw.Create(name)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to add archive entry")
			return
		}
		if _, err := f.Write([]byte(sub.Content)); err != nil {
			logging.Warn().Err(err).Msg("Failed to write archive entry")
			return
		}
	}
	if err := zw.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to finalize archive")
	}
}

// handleDownloadChannelArchive streams every transcript of a channel as
// a ZIP, one text file per (video, language).
func (s *Server) handleDownloadChannelArchive(w http.ResponseWriter, r *http.Request) {
	channelID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	ch, err := s.db.GetChannel(r.Context(), channelID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	subs, err := s.db.SubtitlesForChannel(r.Context(), channelID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(subs) == 0 {
		respondError(w, http.StatusNotFound, "channel %d has no transcripts", channelID)
		return
	}

	archiveName := fmt.Sprintf("%s_transcripts.zip", sanitizeFilename(ch.Name))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName))

	zw := zip.NewWriter(w)
	for _, sub := range subs {
		name := fmt.Sprintf("%d_%s_%s.txt", sub.VideoID, sanitizeFilename(sub.VideoTitle), sub.Language)
		f, err := zw.Create(name)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to add archive entry")
			return
		}
		header := fmt.Sprintf("# %s\n# %s\n\n", sub.VideoTitle, sub.VideoURL)
		if _, err := f.Write([]byte(header + sub.Content)); err != nil {
			logging.Warn().Err(err).Msg("Failed to write archive entry")
			return
		}
	}
	if err := zw.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to finalize archive")
	}
}

// sanitizeFilename replaces characters that are unsafe in filenames.
func sanitizeFilename(name string) string {
	if name == "" {
		return "untitled"
	}
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	out := strings.TrimSpace(replacer.Replace(name))
	if len(out) > 120 {
		out = out[:120]
	}
	if out == "" {
		return "untitled"
	}
	return out
}
