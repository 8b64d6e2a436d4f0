// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"net/http"
	"strconv"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/models"
)

// VideoListResponse is the body of GET /videos.
type VideoListResponse struct {
	Videos       []models.Video     `json:"videos"`
	Total        int                `json:"total"`
	StatusCounts *models.QueueStats `json:"status_counts"`
}

// RetryVideoResponse is the body of POST /videos/{id}/retry.
type RetryVideoResponse struct {
	Message string        `json:"message"`
	Video   *models.Video `json:"video"`
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	filter := database.VideoFilter{
		Limit:  queryInt(r, "limit", 50, 500),
		Offset: queryInt(r, "offset", 0, 0),
	}

	var statsChannel *int64
	if raw := r.URL.Query().Get("channel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			respondError(w, http.StatusUnprocessableEntity, "invalid channel_id %q", raw)
			return
		}
		filter.ChannelID = &id
		statsChannel = &id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.VideoStatus(raw)
		if !status.Valid() {
			respondError(w, http.StatusUnprocessableEntity, "invalid status %q", raw)
			return
		}
		filter.Status = &status
	}

	videos, total, err := s.db.ListVideos(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var stats *models.QueueStats
	if statsChannel != nil {
		stats, err = s.db.ChannelQueueStats(r.Context(), *statsChannel)
	} else {
		stats, err = s.db.Stats(r.Context())
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, VideoListResponse{
		Videos:       videos,
		Total:        total,
		StatusCounts: stats,
	})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	video, err := s.db.GetVideo(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, video)
}

func (s *Server) handleVideoSubtitles(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.db.GetVideo(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	subs, err := s.db.SubtitlesForVideo(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

// handleRetryVideo requeues a failed video. Only failed videos are
// eligible; anything else is a conflict.
func (s *Server) handleRetryVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	video, err := s.db.RetryFailed(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RetryVideoResponse{
		Message: "video requeued",
		Video:   video,
	})
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := s.db.DeleteVideo(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "video deleted"})
}
