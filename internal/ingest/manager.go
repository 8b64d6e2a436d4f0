// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/extractor"
	"github.com/transcriptory/transcriptory/internal/joblog"
	"github.com/transcriptory/transcriptory/internal/logging"
	"github.com/transcriptory/transcriptory/internal/metrics"
	"github.com/transcriptory/transcriptory/internal/models"
)

// insertBatchSize is how many videos go into one insert transaction
// during ingestion. Channels run to tens of thousands of videos; batching
// keeps transactions short so workers are not starved of the store.
const insertBatchSize = 100

// Manager runs channel ingestion as detached tasks. Enumerating a large
// channel can take minutes, so the submit call returns once the channel
// row exists (name "Loading") and the rest happens in the background. At
// most one ingestion runs per channel at a time.
type Manager struct {
	db   *database.DB
	ext  extractor.Extractor
	jlog *joblog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[int64]*models.IngestionStatus
}

// NewManager returns a Manager whose detached tasks stop when Shutdown
// is called.
func NewManager(db *database.DB, ext extractor.Extractor, jlog *joblog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		db:      db,
		ext:     ext,
		jlog:    jlog,
		baseCtx: ctx,
		cancel:  cancel,
		active:  make(map[int64]*models.IngestionStatus),
	}
}

// Submit validates and normalizes rawURL, creates the channel row with
// the "Loading" name sentinel, and starts a detached ingestion task.
// If the channel already exists it is returned with created=false and no
// new task starts.
func (m *Manager) Submit(ctx context.Context, rawURL string) (ch *models.Channel, created bool, err error) {
	normalized, err := NormalizeChannelURL(rawURL)
	if err != nil {
		return nil, false, err
	}

	if existing, err := m.db.GetChannelByURL(ctx, normalized); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}

	ch, err = m.db.CreateChannel(ctx, normalized, models.NameLoading)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	m.active[ch.ID] = &models.IngestionStatus{
		State:     models.IngestionLoading,
		StartedAt: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ch.ID, normalized)
	}()

	return ch, true, nil
}

// run is the detached ingestion task for one channel.
func (m *Manager) run(channelID int64, channelURL string) {
	ctx := m.baseCtx
	log := logging.With().Int64("channel_id", channelID).Str("url", channelURL).Logger()
	log.Info().Msg("Channel ingestion started")

	info, err := m.ext.ChannelInfo(ctx, channelURL)
	if err != nil {
		m.fail(ctx, channelID, err)
		log.Error().Err(err).Msg("Channel enumeration failed")
		return
	}

	name := info.Name
	if name == "" {
		name = channelURL
	}
	if err := m.db.UpdateChannelName(ctx, channelID, name); err != nil {
		m.fail(ctx, channelID, err)
		log.Error().Err(err).Msg("Failed to store channel name")
		return
	}

	m.setFound(channelID, len(info.Videos))

	var ingested int64
	for start := 0; start < len(info.Videos); start += insertBatchSize {
		end := min(start+insertBatchSize, len(info.Videos))
		batch := make([]database.NewVideo, 0, end-start)
		for _, v := range info.Videos[start:end] {
			batch = append(batch, database.NewVideo{URL: v.URL, Title: v.Title})
		}

		n, err := m.db.InsertVideos(ctx, channelID, batch)
		if err != nil {
			m.fail(ctx, channelID, err)
			log.Error().Err(err).Msg("Failed to insert video batch")
			return
		}
		ingested += n
		m.addIngested(channelID, int(n))
		metrics.VideosIngested.Add(float64(n))
	}

	if err := m.db.RefreshChannelTotal(ctx, channelID); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh channel video total")
	}

	m.complete(channelID)
	m.jlog.Info(ctx, nil, "Channel %q ingested: %d videos found, %d enqueued", name, len(info.Videos), ingested)
	log.Info().
		Int("videos_found", len(info.Videos)).
		Int64("videos_enqueued", ingested).
		Msg("Channel ingestion completed")
}

// fail marks the channel name with the "Failed" sentinel and records the
// terminal ingestion state. The cause chain is persisted to the logs
// table for later inspection.
func (m *Manager) fail(ctx context.Context, channelID int64, cause error) {
	if err := m.db.UpdateChannelName(ctx, channelID, models.NameFailed); err != nil {
		logging.Warn().Err(err).Int64("channel_id", channelID).
			Msg("Failed to mark channel ingestion as failed")
	}
	m.jlog.Exception(ctx, nil, cause, "Channel %d ingestion failed", channelID)

	now := time.Now().UTC()
	m.mu.Lock()
	if st := m.active[channelID]; st != nil {
		st.State = models.IngestionFailed
		st.CompletedAt = &now
		st.ErrorMessage = cause.Error()
	}
	m.mu.Unlock()
}

func (m *Manager) setFound(channelID int64, found int) {
	m.mu.Lock()
	if st := m.active[channelID]; st != nil {
		st.VideosFound = found
	}
	m.mu.Unlock()
}

func (m *Manager) addIngested(channelID int64, n int) {
	m.mu.Lock()
	if st := m.active[channelID]; st != nil {
		st.VideosIngested += n
	}
	m.mu.Unlock()
}

func (m *Manager) complete(channelID int64) {
	now := time.Now().UTC()
	m.mu.Lock()
	if st := m.active[channelID]; st != nil {
		st.State = models.IngestionCompleted
		st.CompletedAt = &now
	}
	m.mu.Unlock()
}

// Status reports ingestion progress for a channel. Tasks tracked in this
// process report live progress; for channels from before a restart the
// state is inferred from the stored name sentinel.
func (m *Manager) Status(ctx context.Context, channelID int64) (*models.IngestionStatus, error) {
	m.mu.Lock()
	if st, ok := m.active[channelID]; ok {
		copied := *st
		m.mu.Unlock()
		return &copied, nil
	}
	m.mu.Unlock()

	ch, err := m.db.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	st := &models.IngestionStatus{
		StartedAt:   ch.CreatedAt,
		VideosFound: ch.TotalVideos,
	}
	switch ch.Name {
	case models.NameFailed:
		st.State = models.IngestionFailed
		st.ErrorMessage = "ingestion failed"
	case models.NameLoading:
		// Loading with no tracked task means the process restarted
		// mid-ingestion and the task is gone.
		st.State = models.IngestionFailed
		st.ErrorMessage = "ingestion interrupted by restart"
	default:
		st.State = models.IngestionCompleted
		st.VideosIngested = ch.TotalVideos
	}
	return st, nil
}

// Shutdown cancels detached tasks and waits for them to exit, bounded by
// ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
