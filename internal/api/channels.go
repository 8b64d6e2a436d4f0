// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"net/http"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/ingest"
	"github.com/transcriptory/transcriptory/internal/models"
)

// CreateChannelsRequest is the body of POST /channels: a single url or
// a batch. Both may be present; the single url is submitted first.
type CreateChannelsRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
}

// ChannelIngestionResponse summarizes a channel submission. Ingestion
// runs detached, so VideosEnqueued only counts rows inserted before the
// response; poll the ingestion-status endpoint for live progress.
type ChannelIngestionResponse struct {
	ChannelsCreated int              `json:"channels_created"`
	VideosEnqueued  int64            `json:"videos_enqueued"`
	ChannelsSkipped []string         `json:"channels_skipped,omitempty"`
	VideosExisting  *int64           `json:"videos_existing,omitempty"`
	Channels        []models.Channel `json:"channels"`
}

// ChannelListResponse is the body of GET /channels.
type ChannelListResponse struct {
	Channels []models.ChannelStats `json:"channels"`
	Total    int                   `json:"total"`
}

// DeleteChannelResponse is the body of DELETE /channels/{id}.
type DeleteChannelResponse struct {
	Message       string `json:"message"`
	VideosDeleted int64  `json:"videos_deleted"`
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	urls := req.URLs
	if req.URL != "" {
		urls = append([]string{req.URL}, urls...)
	}
	if len(urls) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "url or urls is required")
		return
	}

	// The whole batch is validated before anything mutates, so one bad
	// URL rejects the request without partial ingestion.
	for _, raw := range urls {
		if _, err := ingest.NormalizeChannelURL(raw); err != nil {
			respondStoreError(w, err)
			return
		}
	}

	resp := ChannelIngestionResponse{Channels: make([]models.Channel, 0, len(urls))}
	var existingVideos int64
	for _, raw := range urls {
		ch, created, err := s.ingest.Submit(r.Context(), raw)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		resp.Channels = append(resp.Channels, *ch)
		if created {
			resp.ChannelsCreated++
		} else {
			resp.ChannelsSkipped = append(resp.ChannelsSkipped, ch.URL)
			existingVideos += int64(ch.TotalVideos)
		}
	}
	if len(resp.ChannelsSkipped) > 0 {
		resp.VideosExisting = &existingVideos
	}

	status := http.StatusOK
	if resp.ChannelsCreated > 0 {
		status = http.StatusAccepted
	}
	respondJSON(w, status, resp)
}

// handleChannelVideos lists one channel's videos with its per-status
// counts.
func (s *Server) handleChannelVideos(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.db.GetChannel(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	filter := database.VideoFilter{
		ChannelID: &id,
		Limit:     queryInt(r, "limit", 50, 500),
		Offset:    queryInt(r, "offset", 0, 0),
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
	stats, err := s.db.ChannelQueueStats(r.Context(), id)
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

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.db.ListChannelStats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ChannelListResponse{Channels: channels, Total: len(channels)})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	ch, err := s.db.GetChannel(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ch)
}

func (s *Server) handleIngestionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	st, err := s.ingest.Status(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	videosDeleted, err := s.db.DeleteChannel(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	s.jlog.Info(r.Context(), nil, "Channel %d deleted with %d videos", id, videosDeleted)
	respondJSON(w, http.StatusOK, DeleteChannelResponse{
		Message:       "channel deleted",
		VideosDeleted: videosDeleted,
	})
}
