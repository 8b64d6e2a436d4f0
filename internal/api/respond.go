// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/ingest"
	"github.com/transcriptory/transcriptory/internal/logging"
	"github.com/transcriptory/transcriptory/internal/validation"
)

// maxBodyBytes bounds request bodies; control-plane payloads are tiny.
const maxBodyBytes = 1 << 20

// errorBody is the single error shape of the API.
type errorBody struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, format string, args ...any) {
	respondJSON(w, status, errorBody{Detail: fmt.Sprintf(format, args...)})
}

// respondStoreError maps store and ingest errors to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, database.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "%s", err.Error())
	case errors.Is(err, ingest.ErrInvalidChannelURL):
		respondError(w, http.StatusUnprocessableEntity, "%s", err.Error())
	default:
		logging.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody parses a JSON body into v and validates it. An empty body
// is allowed when v's zero value validates, so optional-body endpoints
// share this path.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body: %s", err.Error())
		return false
	}

	if verr := validation.ValidateStruct(v); verr != nil {
		respondError(w, http.StatusUnprocessableEntity, "%s", verr.Error())
		return false
	}
	return true
}

// idParam parses the named chi URL parameter as a positive integer id.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusUnprocessableEntity, "invalid %s %q", name, raw)
		return 0, false
	}
	return id, true
}

// parsePositiveInt parses raw as a positive int64 id.
func parsePositiveInt(raw string) (int64, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// queryInt parses an optional integer query parameter, falling back to
// def and clamping to [1, max] when max > 0.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
