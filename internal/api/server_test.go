// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/transcriptory/transcriptory/internal/config"
	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/extractor"
	"github.com/transcriptory/transcriptory/internal/ingest"
	"github.com/transcriptory/transcriptory/internal/joblog"
	"github.com/transcriptory/transcriptory/internal/models"
	"github.com/transcriptory/transcriptory/internal/worker"
)

// stubExtractor answers channel listings instantly and never extracts.
type stubExtractor struct {
	channelName string
	videos      []extractor.VideoEntry
}

func (s *stubExtractor) ChannelInfo(_ context.Context, _ string) (*extractor.ChannelInfo, error) {
	return &extractor.ChannelInfo{Name: s.channelName, Videos: s.videos}, nil
}

func (s *stubExtractor) Transcript(_ context.Context, _ string) (*extractor.Transcript, error) {
	return nil, errors.New("not implemented")
}

type testEnv struct {
	db     *database.DB
	server *httptest.Server
	ingest *ingest.Manager
	pool   *worker.Pool
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Path:        ":memory:",
		MaxMemory:   "256MB",
		Threads:     2,
		LockTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.SeedSettings(context.Background(), models.DefaultSettings()); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}

	ext := &stubExtractor{
		channelName: "Stub Creator",
		videos: []extractor.VideoEntry{
			{URL: "https://www.youtube.com/watch?v=stub1", Title: "First"},
			{URL: "https://www.youtube.com/watch?v=stub2", Title: "Second"},
		},
	}
	jlog := joblog.New(db)
	pool := worker.NewPool(db, ext, jlog)
	mgr := ingest.NewManager(db, ext, jlog)

	srv := NewServer(db, pool, mgr, jlog, &config.ServerConfig{
		Host: "127.0.0.1", Port: 0, Timeout: 10 * time.Second, ShutdownTimeout: 5 * time.Second,
	})
	ts := httptest.NewServer(srv.Router())

	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if pool.Running() {
			if err := pool.Stop(ctx); err != nil {
				t.Errorf("failed to stop pool: %v", err)
			}
		}
		if err := mgr.Shutdown(ctx); err != nil {
			t.Errorf("failed to shut down ingest manager: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return &testEnv{db: db, server: ts, ingest: mgr, pool: pool}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func checkStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

// waitForIngestion polls the ingestion-status endpoint until it leaves
// the loading state.
func (e *testEnv) waitForIngestion(t *testing.T, channelID int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := e.ingest.Status(context.Background(), channelID)
		if err != nil {
			t.Fatalf("ingestion status failed: %v", err)
		}
		if st.State != models.IngestionLoading {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("ingestion did not finish in time")
}

func TestCreateChannelFlow(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodPost, "/channels", map[string]string{
		"url": "youtube.com/@stubcreator",
	})
	checkStatus(t, resp, http.StatusAccepted)
	created := decode[ChannelIngestionResponse](t, resp)
	if created.ChannelsCreated != 1 || len(created.Channels) != 1 {
		t.Fatalf("unexpected create response: %+v", created)
	}
	channelID := created.Channels[0].ID
	if created.Channels[0].Name != models.NameLoading {
		t.Errorf("fresh channel should be loading, got %q", created.Channels[0].Name)
	}

	env.waitForIngestion(t, channelID)

	// Duplicate submission returns the existing channel.
	resp = env.request(t, http.MethodPost, "/channels", map[string]string{
		"url": "https://www.youtube.com/@stubcreator/",
	})
	checkStatus(t, resp, http.StatusOK)
	dup := decode[ChannelIngestionResponse](t, resp)
	if dup.ChannelsCreated != 0 || len(dup.ChannelsSkipped) != 1 {
		t.Errorf("duplicate should be skipped: %+v", dup)
	}
	if len(dup.Channels) != 1 || dup.Channels[0].ID != channelID {
		t.Errorf("duplicate should return existing channel: %+v", dup)
	}
	if dup.VideosExisting == nil || *dup.VideosExisting != 2 {
		t.Errorf("duplicate should report existing videos: %+v", dup.VideosExisting)
	}

	// Ingestion status reports completion.
	resp = env.request(t, http.MethodGet,
		fmt.Sprintf("/channels/%d/ingestion-status", channelID), nil)
	checkStatus(t, resp, http.StatusOK)
	st := decode[models.IngestionStatus](t, resp)
	if st.State != models.IngestionCompleted || st.VideosIngested != 2 {
		t.Errorf("unexpected ingestion status: %+v", st)
	}

	// Channel listing carries per-status counts.
	resp = env.request(t, http.MethodGet, "/channels", nil)
	checkStatus(t, resp, http.StatusOK)
	list := decode[ChannelListResponse](t, resp)
	if list.Total != 1 || list.Channels[0].Pending != 2 {
		t.Errorf("unexpected channel listing: %+v", list)
	}
}

func TestCreateChannelsBatch(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodPost, "/channels", map[string]any{
		"urls": []string{
			"https://www.youtube.com/@creatorone",
			"https://www.youtube.com/@creatortwo",
		},
	})
	checkStatus(t, resp, http.StatusAccepted)
	batch := decode[ChannelIngestionResponse](t, resp)
	if batch.ChannelsCreated != 2 || len(batch.Channels) != 2 {
		t.Fatalf("unexpected batch response: %+v", batch)
	}
	for _, ch := range batch.Channels {
		env.waitForIngestion(t, ch.ID)
	}

	// A mixed batch creates the new channel and skips the known one.
	resp = env.request(t, http.MethodPost, "/channels", map[string]any{
		"urls": []string{
			"https://www.youtube.com/@creatorone",
			"https://www.youtube.com/@creatorthree",
		},
	})
	checkStatus(t, resp, http.StatusAccepted)
	mixed := decode[ChannelIngestionResponse](t, resp)
	if mixed.ChannelsCreated != 1 || len(mixed.ChannelsSkipped) != 1 {
		t.Fatalf("unexpected mixed batch: %+v", mixed)
	}
	env.waitForIngestion(t, mixed.Channels[1].ID)

	// One bad URL rejects the whole batch before anything mutates.
	resp = env.request(t, http.MethodPost, "/channels", map[string]any{
		"urls": []string{
			"https://www.youtube.com/@creatorfour",
			"https://example.com/@nope",
		},
	})
	checkStatus(t, resp, http.StatusUnprocessableEntity)
	list := decode[ChannelListResponse](t, env.request(t, http.MethodGet, "/channels", nil))
	if list.Total != 3 {
		t.Errorf("rejected batch must not create channels, have %d", list.Total)
	}
}

func TestChannelVideosEndpoint(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodPost, "/channels", map[string]string{
		"url": "https://www.youtube.com/@stubcreator",
	})
	created := decode[ChannelIngestionResponse](t, resp)
	channelID := created.Channels[0].ID
	env.waitForIngestion(t, channelID)

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/channels/%d/videos", channelID), nil)
	checkStatus(t, resp, http.StatusOK)
	list := decode[VideoListResponse](t, resp)
	if list.Total != 2 || list.StatusCounts.Pending != 2 {
		t.Fatalf("unexpected channel videos: total=%d counts=%+v", list.Total, list.StatusCounts)
	}

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/channels/%d/videos?status=completed", channelID), nil)
	list = decode[VideoListResponse](t, resp)
	if list.Total != 0 {
		t.Errorf("no videos should be completed yet, got %d", list.Total)
	}

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/channels/%d/videos?status=bogus", channelID), nil)
	checkStatus(t, resp, http.StatusUnprocessableEntity)

	resp = env.request(t, http.MethodGet, "/channels/99999/videos", nil)
	checkStatus(t, resp, http.StatusNotFound)
}

func TestCreateChannelRejectsInvalidURL(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"wrong host", map[string]string{"url": "https://example.com/@creator"}},
		{"not a channel path", map[string]string{"url": "https://www.youtube.com/watch?v=abc"}},
		{"missing url", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.request(t, http.MethodPost, "/channels", tt.body)
			checkStatus(t, resp, http.StatusUnprocessableEntity)
			body := decode[errorBody](t, resp)
			if body.Detail == "" {
				t.Error("error response should carry a detail message")
			}
		})
	}
}

func TestChannelNotFound(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodGet, "/channels/12345", nil)
	checkStatus(t, resp, http.StatusNotFound)

	resp = env.request(t, http.MethodDelete, "/channels/12345", nil)
	checkStatus(t, resp, http.StatusNotFound)
}

func TestVideoListingAndFilters(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodPost, "/channels", map[string]string{
		"url": "https://www.youtube.com/@stubcreator",
	})
	created := decode[ChannelIngestionResponse](t, resp)
	env.waitForIngestion(t, created.Channels[0].ID)

	resp = env.request(t, http.MethodGet, "/videos", nil)
	checkStatus(t, resp, http.StatusOK)
	list := decode[VideoListResponse](t, resp)
	if list.Total != 2 || list.StatusCounts.Pending != 2 {
		t.Fatalf("unexpected video listing: total=%d counts=%+v", list.Total, list.StatusCounts)
	}

	resp = env.request(t, http.MethodGet, "/videos?status=completed", nil)
	list = decode[VideoListResponse](t, resp)
	if list.Total != 0 {
		t.Errorf("no videos should be completed yet, got %d", list.Total)
	}

	resp = env.request(t, http.MethodGet, "/videos?status=bogus", nil)
	checkStatus(t, resp, http.StatusUnprocessableEntity)

	resp = env.request(t, http.MethodGet, "/videos?limit=1", nil)
	list = decode[VideoListResponse](t, resp)
	if len(list.Videos) != 1 || list.Total != 2 {
		t.Errorf("limit should page results: %d of %d", len(list.Videos), list.Total)
	}

	// Retrying a pending video is a conflict.
	resp = env.request(t, http.MethodPost, fmt.Sprintf("/videos/%d/retry", list.Videos[0].ID), nil)
	checkStatus(t, resp, http.StatusConflict)
}

func TestWorkerControlEndpoints(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodPost, "/jobs/workers/start", map[string]int{"num_workers": 2})
	checkStatus(t, resp, http.StatusOK)
	ctrl := decode[JobControlResponse](t, resp)
	if ctrl.Status != models.JobRunning {
		t.Errorf("expected running status, got %s", ctrl.Status)
	}

	// Double start conflicts.
	resp = env.request(t, http.MethodPost, "/jobs/workers/start", nil)
	checkStatus(t, resp, http.StatusConflict)

	// Out-of-range worker count is rejected before touching the pool.
	resp = env.request(t, http.MethodPost, "/jobs/workers/restart", map[string]int{"num_workers": 99})
	checkStatus(t, resp, http.StatusUnprocessableEntity)

	resp = env.request(t, http.MethodGet, "/jobs/status", nil)
	checkStatus(t, resp, http.StatusOK)
	status := decode[JobStatusResponse](t, resp)
	if status.Status != models.JobRunning || len(status.Workers) != 2 {
		t.Errorf("unexpected job status: %+v", status)
	}

	resp = env.request(t, http.MethodPost, "/jobs/workers/stop", nil)
	checkStatus(t, resp, http.StatusOK)

	resp = env.request(t, http.MethodPost, "/jobs/workers/stop", nil)
	checkStatus(t, resp, http.StatusConflict)
}

func TestJobLifecycleEndpoints(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodPost, "/jobs/start", nil)
	checkStatus(t, resp, http.StatusOK)
	ctrl := decode[JobControlResponse](t, resp)
	if ctrl.Status != models.JobRunning {
		t.Errorf("start should mark the job running, got %s", ctrl.Status)
	}

	resp = env.request(t, http.MethodPost, "/jobs/pause", nil)
	checkStatus(t, resp, http.StatusOK)
	ctrl = decode[JobControlResponse](t, resp)
	if ctrl.Status != models.JobPaused {
		t.Errorf("pause should mark the job paused, got %s", ctrl.Status)
	}

	resp = env.request(t, http.MethodPost, "/jobs/resume", nil)
	checkStatus(t, resp, http.StatusOK)
	ctrl = decode[JobControlResponse](t, resp)
	if ctrl.Status != models.JobRunning {
		t.Errorf("resume should mark the job running, got %s", ctrl.Status)
	}

	// Stop releases claimed work back to pending and reports the count.
	ch, err := env.db.CreateChannel(context.Background(), "https://www.youtube.com/@life", "Life")
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	if _, err := env.db.InsertVideos(context.Background(), ch.ID, []database.NewVideo{
		{URL: "https://www.youtube.com/watch?v=lf1", Title: "a"},
	}); err != nil {
		t.Fatalf("failed to insert video: %v", err)
	}
	if claimed, err := env.db.ClaimNext(context.Background()); err != nil || claimed == nil {
		t.Fatalf("failed to claim: %v", err)
	}

	resp = env.request(t, http.MethodPost, "/jobs/stop", nil)
	checkStatus(t, resp, http.StatusOK)
	ctrl = decode[JobControlResponse](t, resp)
	if ctrl.Status != models.JobIdle {
		t.Errorf("stop should mark the job idle, got %s", ctrl.Status)
	}
	if !strings.Contains(ctrl.Message, "reset 1") {
		t.Errorf("stop message should report the reset count, got %q", ctrl.Message)
	}
	if ctrl.QueueStats.Processing != 0 || ctrl.QueueStats.Pending != 1 {
		t.Errorf("stop should release claimed videos: %+v", ctrl.QueueStats)
	}
}

func TestWorkersStatusEndpoint(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodGet, "/jobs/workers/status", nil)
	checkStatus(t, resp, http.StatusOK)
	st := decode[WorkersStatusResponse](t, resp)
	if st.Running || st.NumWorkers != 0 {
		t.Errorf("idle pool should report no workers: %+v", st)
	}
	if st.Performance.EstimatedCompletion != "queue complete" {
		t.Errorf("empty queue should report completion, got %q", st.Performance.EstimatedCompletion)
	}

	resp = env.request(t, http.MethodPost, "/jobs/workers/start", map[string]int{"num_workers": 2})
	checkStatus(t, resp, http.StatusOK)

	resp = env.request(t, http.MethodGet, "/jobs/workers/status", nil)
	checkStatus(t, resp, http.StatusOK)
	st = decode[WorkersStatusResponse](t, resp)
	if !st.Running || st.NumWorkers != 2 || len(st.Workers) != 2 {
		t.Errorf("running pool should report its workers: %+v", st)
	}
	if st.ActiveWorkers != 2 {
		t.Errorf("job record should carry the worker count, got %d", st.ActiveWorkers)
	}
	if st.QueueStats == nil {
		t.Error("workers status should embed queue stats")
	}
}

func TestQueueAliasEndpoints(t *testing.T) {
	env := setupEnv(t)

	ch, err := env.db.CreateChannel(context.Background(), "https://www.youtube.com/@alias", "Alias")
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	if _, err := env.db.InsertVideos(context.Background(), ch.ID, []database.NewVideo{
		{URL: "https://www.youtube.com/watch?v=al1", Title: "a"},
	}); err != nil {
		t.Fatalf("failed to insert video: %v", err)
	}

	resp := env.request(t, http.MethodGet, "/videos/queue/stats", nil)
	checkStatus(t, resp, http.StatusOK)
	stats := decode[models.QueueStats](t, resp)
	if stats.Pending != 1 {
		t.Errorf("unexpected queue stats: %+v", stats)
	}

	resp = env.request(t, http.MethodGet, "/videos/queue/failed", nil)
	checkStatus(t, resp, http.StatusOK)
	failed := decode[FailedVideosResponse](t, resp)
	if failed.Total != 0 {
		t.Errorf("no videos should be failed: %+v", failed)
	}
}

func TestCleanupLogsByQuery(t *testing.T) {
	env := setupEnv(t)

	if err := env.db.InsertLog(context.Background(), nil, models.LogInfo, "old news"); err != nil {
		t.Fatalf("failed to insert log: %v", err)
	}

	resp := env.request(t, http.MethodPost, "/jobs/cleanup?days=30", nil)
	checkStatus(t, resp, http.StatusOK)

	for _, days := range []string{"0", "366", "abc", ""} {
		resp = env.request(t, http.MethodPost, "/jobs/cleanup?days="+days, nil)
		checkStatus(t, resp, http.StatusUnprocessableEntity)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodGet, "/jobs/settings", nil)
	checkStatus(t, resp, http.StatusOK)
	settings := decode[models.Settings](t, resp)
	if settings.MaxWorkers != models.DefaultSettings().MaxWorkers {
		t.Errorf("unexpected seeded settings: %+v", settings)
	}

	resp = env.request(t, http.MethodPost, "/jobs/settings", map[string]any{
		"max_workers": 8, "max_retries": 5, "backoff_factor": 3.0, "output_dir": "./out",
	})
	checkStatus(t, resp, http.StatusOK)
	updated := decode[models.Settings](t, resp)
	if updated.MaxWorkers != 8 || updated.MaxRetries != 5 {
		t.Errorf("settings not updated: %+v", updated)
	}

	// Out-of-range values are rejected.
	resp = env.request(t, http.MethodPost, "/jobs/settings", map[string]any{
		"max_workers": 50, "max_retries": 5, "backoff_factor": 3.0, "output_dir": "./out",
	})
	checkStatus(t, resp, http.StatusUnprocessableEntity)

	resp = env.request(t, http.MethodPost, "/jobs/settings", map[string]any{
		"max_workers": 8, "max_retries": 5, "backoff_factor": 0.5, "output_dir": "./out",
	})
	checkStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestReconcileEndpoint(t *testing.T) {
	env := setupEnv(t)

	ch, err := env.db.CreateChannel(context.Background(), "https://www.youtube.com/@rec", "Rec")
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	if _, err := env.db.InsertVideos(context.Background(), ch.ID, []database.NewVideo{
		{URL: "https://www.youtube.com/watch?v=rc1", Title: "a"},
	}); err != nil {
		t.Fatalf("failed to insert video: %v", err)
	}
	claimed, err := env.db.ClaimNext(context.Background())
	if err != nil || claimed == nil {
		t.Fatalf("failed to claim: %v", err)
	}
	if _, err := env.db.UpsertSubtitle(context.Background(), claimed.ID, "en", "text"); err != nil {
		t.Fatalf("failed to upsert subtitle: %v", err)
	}

	resp := env.request(t, http.MethodPost, "/jobs/reconcile", nil)
	checkStatus(t, resp, http.StatusOK)
	rec := decode[ReconcileResponse](t, resp)
	if rec.CompletedVideos != 1 || rec.ResetVideos != 0 {
		t.Errorf("unexpected reconcile result: %+v", rec)
	}
}

func TestLogsEndpoints(t *testing.T) {
	env := setupEnv(t)

	if err := env.db.InsertLog(context.Background(), nil, models.LogInfo, "hello"); err != nil {
		t.Fatalf("failed to insert log: %v", err)
	}
	if err := env.db.InsertLog(context.Background(), nil, models.LogError, "boom"); err != nil {
		t.Fatalf("failed to insert log: %v", err)
	}

	resp := env.request(t, http.MethodGet, "/jobs/logs", nil)
	checkStatus(t, resp, http.StatusOK)
	logs := decode[LogListResponse](t, resp)
	if logs.Total != 2 {
		t.Fatalf("expected 2 logs, got %d", logs.Total)
	}

	resp = env.request(t, http.MethodGet, "/jobs/logs?level=ERROR", nil)
	logs = decode[LogListResponse](t, resp)
	if logs.Total != 1 || logs.Logs[0].Message != "boom" {
		t.Errorf("level filter failed: %+v", logs)
	}

	resp = env.request(t, http.MethodGet, "/jobs/logs?level=NOPE", nil)
	checkStatus(t, resp, http.StatusUnprocessableEntity)

	resp = env.request(t, http.MethodPost, "/jobs/logs/cleanup", map[string]int{"days": 30})
	checkStatus(t, resp, http.StatusOK)

	resp = env.request(t, http.MethodPost, "/jobs/logs/cleanup", map[string]int{"days": 0})
	checkStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestSubtitleEndpoints(t *testing.T) {
	env := setupEnv(t)

	ch, err := env.db.CreateChannel(context.Background(), "https://www.youtube.com/@subs", "Subs Channel")
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	if _, err := env.db.InsertVideos(context.Background(), ch.ID, []database.NewVideo{
		{URL: "https://www.youtube.com/watch?v=s1", Title: "Sub Video"},
	}); err != nil {
		t.Fatalf("failed to insert video: %v", err)
	}
	videos, _, err := env.db.ListVideos(context.Background(), database.VideoFilter{Limit: 1})
	if err != nil {
		t.Fatalf("failed to list videos: %v", err)
	}
	sub, err := env.db.UpsertSubtitle(context.Background(), videos[0].ID, "en", "the transcript text")
	if err != nil {
		t.Fatalf("failed to upsert subtitle: %v", err)
	}

	resp := env.request(t, http.MethodGet, fmt.Sprintf("/subtitles/%d", sub.ID), nil)
	checkStatus(t, resp, http.StatusOK)
	got := decode[models.Subtitle](t, resp)
	if got.Content != "the transcript text" {
		t.Errorf("unexpected subtitle: %+v", got)
	}

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/subtitles/%d/download", sub.ID), nil)
	checkStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("download should be text/plain, got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("download should be an attachment, got %q", cd)
	}

	resp = env.request(t, http.MethodGet, fmt.Sprintf("/channels/%d/subtitles/download", ch.ID), nil)
	checkStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("archive should be application/zip, got %q", ct)
	}

	// Video subtitle listing.
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/videos/%d/subtitles", videos[0].ID), nil)
	checkStatus(t, resp, http.StatusOK)
	subs := decode[[]models.Subtitle](t, resp)
	if len(subs) != 1 {
		t.Errorf("expected 1 subtitle, got %d", len(subs))
	}

	// Summary listing carries lengths, not content.
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/subtitles?video_id=%d", videos[0].ID), nil)
	checkStatus(t, resp, http.StatusOK)
	summaries := decode[SubtitleListResponse](t, resp)
	if summaries.Total != 1 || summaries.Subtitles[0].ContentLength != len("the transcript text") {
		t.Errorf("unexpected subtitle summaries: %+v", summaries)
	}

	resp = env.request(t, http.MethodGet, "/subtitles?language=de", nil)
	summaries = decode[SubtitleListResponse](t, resp)
	if summaries.Total != 0 {
		t.Errorf("language filter failed: %+v", summaries)
	}

	// A single-language video downloads as plain text.
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/videos/%d/subtitles/download", videos[0].ID), nil)
	checkStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("single language download should be text/plain, got %q", ct)
	}

	// Two languages switch the download to a ZIP.
	if _, err := env.db.UpsertSubtitle(context.Background(), videos[0].ID, "de", "der transkripttext"); err != nil {
		t.Fatalf("failed to upsert second subtitle: %v", err)
	}
	resp = env.request(t, http.MethodGet, fmt.Sprintf("/videos/%d/subtitles/download", videos[0].ID), nil)
	checkStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("multi language download should be application/zip, got %q", ct)
	}

	resp = env.request(t, http.MethodGet, "/subtitles/99999", nil)
	checkStatus(t, resp, http.StatusNotFound)
}

func TestHealthz(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodGet, "/healthz", nil)
	checkStatus(t, resp, http.StatusOK)
	health := decode[HealthResponse](t, resp)
	if health.Status != "ok" || health.Database != "ok" || health.Workers != "idle" {
		t.Errorf("unexpected health response: %+v", health)
	}

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("responses should carry a request id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupEnv(t)

	resp := env.request(t, http.MethodGet, "/metrics", nil)
	checkStatus(t, resp, http.StatusOK)
}
