// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package worker runs the pool of queue consumers. Each worker claims
// one video at a time, extracts its transcript, stores it, and releases
// the video back through the queue manager.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/extractor"
	"github.com/transcriptory/transcriptory/internal/faults"
	"github.com/transcriptory/transcriptory/internal/joblog"
	"github.com/transcriptory/transcriptory/internal/logging"
	"github.com/transcriptory/transcriptory/internal/metrics"
	"github.com/transcriptory/transcriptory/internal/models"
)

// ErrAlreadyRunning is returned when Start is called on a running pool.
var ErrAlreadyRunning = errors.New("worker pool already running")

// ErrNotRunning is returned when Stop is called on an idle pool.
var ErrNotRunning = errors.New("worker pool not running")

// idlePollInterval is how long a worker sleeps when the queue is empty.
const idlePollInterval = time.Second

// maxBackoff caps per-video retry backoff.
const maxBackoff = 5 * time.Minute

// Status is a point-in-time snapshot of one worker.
type Status struct {
	ID             int       `json:"id"`
	Processed      int64     `json:"processed"`
	Failed         int64     `json:"failed"`
	Running        bool      `json:"running"`
	CurrentVideoID *int64    `json:"current_video_id"`
	StartedAt      time.Time `json:"started_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// Pool manages a set of worker goroutines over the shared queue.
type Pool struct {
	db   *database.DB
	ext  extractor.Extractor
	jlog *joblog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	statuses map[int]*Status
}

// NewPool returns an idle pool.
func NewPool(db *database.DB, ext extractor.Extractor, jlog *joblog.Logger) *Pool {
	return &Pool{
		db:       db,
		ext:      ext,
		jlog:     jlog,
		statuses: make(map[int]*Status),
	}
}

// Start launches numWorkers workers. If numWorkers is zero or negative,
// the stored max_workers setting applies.
func (p *Pool) Start(ctx context.Context, numWorkers int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}

	if numWorkers <= 0 {
		settings, err := p.db.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("failed to read worker settings: %w", err)
		}
		numWorkers = settings.MaxWorkers
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg = &sync.WaitGroup{}
	p.statuses = make(map[int]*Status, numWorkers)
	p.running = true

	// Mark the job record first: workers consult it before every claim,
	// and a stale paused or idle status would leave them idling.
	if err := p.db.SetJobRunning(ctx, numWorkers); err != nil {
		logging.Warn().Err(err).Msg("Failed to update job record")
	}

	now := time.Now().UTC()
	for i := 1; i <= numWorkers; i++ {
		st := &Status{ID: i, Running: true, StartedAt: now, LastActivity: now}
		p.statuses[i] = st
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(workerCtx, st)
		}()
	}

	metrics.ActiveWorkers.Set(float64(numWorkers))
	p.jlog.Info(ctx, nil, "Worker pool started with %d workers", numWorkers)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollQueueDepth(workerCtx)
	}()

	return nil
}

// Stop cancels all workers and waits for them to finish their current
// video, bounded by ctx. Workers that do not finish in time are left to
// die with the process; their claimed videos are recovered by the next
// startup pass.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	cancel, wg := p.cancel, p.wg
	p.running = false
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("workers did not stop cleanly: %w", ctx.Err())
	}

	p.mu.Lock()
	for _, st := range p.statuses {
		st.Running = false
		st.CurrentVideoID = nil
	}
	p.mu.Unlock()

	if err := p.db.SetJobStopped(context.WithoutCancel(ctx)); err != nil {
		logging.Warn().Err(err).Msg("Failed to update job record")
	}

	// Operator stop releases claimed work immediately instead of leaving
	// it in processing until the next startup recovery.
	if n, err := p.db.ResetProcessing(context.WithoutCancel(ctx)); err != nil {
		logging.Warn().Err(err).Msg("Failed to reset processing videos on stop")
	} else if n > 0 {
		p.jlog.Info(context.WithoutCancel(ctx), nil, "Reset %d processing videos to pending on stop", n)
	}

	metrics.ActiveWorkers.Set(0)
	p.jlog.Info(context.WithoutCancel(ctx), nil, "Worker pool stopped")
	return waitErr
}

// Restart stops the pool if running and starts it with numWorkers.
func (p *Pool) Restart(ctx context.Context, numWorkers int) error {
	if err := p.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return p.Start(ctx, numWorkers)
}

// Running reports whether the pool has active workers.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Statuses returns a snapshot of all worker statuses ordered by id.
func (p *Pool) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.statuses))
	for i := 1; i <= len(p.statuses); i++ {
		if st, ok := p.statuses[i]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// loop is one worker's claim-process-release cycle.
func (p *Pool) loop(ctx context.Context, st *Status) {
	log := logging.With().Int("worker_id", st.ID).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Worker stopped")
			return
		default:
		}

		// Honor the advisory job record: a paused or stopped job keeps
		// workers alive but idle until an operator resumes it.
		if job, err := p.db.GetJob(ctx); err == nil && job.Status != models.JobRunning {
			p.sleep(ctx, idlePollInterval)
			continue
		}

		video, err := p.db.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("Failed to claim video")
			}
			p.sleep(ctx, idlePollInterval)
			continue
		}
		if video == nil {
			p.sleep(ctx, idlePollInterval)
			continue
		}

		backoff := p.process(ctx, st, video, &log)
		if backoff > 0 {
			p.sleep(ctx, backoff)
		}
	}
}

// process handles one claimed video end to end and returns how long the
// worker should back off before its next claim. A panic anywhere in the
// cycle releases the video as a transient failure and lets the worker
// continue.
func (p *Pool) process(ctx context.Context, st *Status, video *models.Video, log *zerolog.Logger) (backoff time.Duration) {
	p.setCurrent(st, &video.ID)
	defer p.setCurrent(st, nil)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Int64("video_id", video.ID).
				Str("stack", string(debug.Stack())).
				Msg("Worker panicked while processing video")
			backoff = p.release(ctx, st, video, fmt.Errorf("worker panic: %v", r), log)
		}
	}()

	start := time.Now()
	transcript, err := p.ext.Transcript(ctx, video.URL)
	if err != nil {
		return p.release(ctx, st, video, err, log)
	}
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())

	if _, err := p.db.UpsertSubtitle(ctx, video.ID, transcript.Language, transcript.Content); err != nil {
		return p.release(ctx, st, video, err, log)
	}

	if _, err := p.db.Complete(ctx, video.ID); err != nil {
		log.Error().Err(err).Int64("video_id", video.ID).Msg("Failed to complete video")
		p.bumpFailed(st)
		return 0
	}

	p.bumpProcessed(st)
	metrics.VideosProcessed.WithLabelValues(metrics.ResultCompleted).Inc()
	log.Info().
		Int64("video_id", video.ID).
		Str("language", transcript.Language).
		Dur("duration", time.Since(start)).
		Msg("Video processed")
	return 0
}

// release routes a failure to the right queue transition and computes
// the backoff owed before the worker's next claim.
func (p *Pool) release(ctx context.Context, st *Status, video *models.Video, procErr error, log *zerolog.Logger) time.Duration {
	p.bumpFailed(st)

	// Shutdown mid-extraction: leave the row processing; startup
	// recovery or the reconcile pass will pick it up.
	if ctx.Err() != nil {
		return 0
	}

	releaseCtx := context.WithoutCancel(ctx)
	permanent := isPermanent(procErr)

	var released *models.Video
	var err error
	if permanent {
		released, err = p.db.FailPermanent(releaseCtx, video.ID, procErr.Error())
		metrics.VideosProcessed.WithLabelValues(metrics.ResultFailedPermanent).Inc()
	} else {
		released, err = p.db.Fail(releaseCtx, video.ID, procErr.Error())
		metrics.VideosProcessed.WithLabelValues(metrics.ResultFailedTransient).Inc()
	}
	if err != nil {
		log.Error().Err(err).Int64("video_id", video.ID).Msg("Failed to release video")
		return 0
	}

	log.Warn().
		Err(procErr).
		Int64("video_id", video.ID).
		Int("attempts", released.Attempts).
		Str("status", string(released.Status)).
		Bool("permanent", permanent).
		Msg("Video processing failed")

	if released.Status != models.VideoPending {
		return 0
	}
	return p.backoff(releaseCtx, released.Attempts)
}

// backoff derives the retry delay from the post-release attempt count:
// backoff_factor^attempts seconds, capped at maxBackoff.
func (p *Pool) backoff(ctx context.Context, attempts int) time.Duration {
	factor := models.DefaultSettings().BackoffFactor
	if settings, err := p.db.GetSettings(ctx); err == nil {
		factor = settings.BackoffFactor
	}

	seconds := 1.0
	for i := 0; i < attempts; i++ {
		seconds *= factor
	}
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// isPermanent decides the release path for a processing error.
func isPermanent(err error) bool {
	if extractor.ErrCircuitOpen(err) {
		// Breaker rejections are upstream backpressure, never a verdict
		// on the video.
		return false
	}
	if errors.Is(err, extractor.ErrNoTranscript) || errors.Is(err, database.ErrContentTooLarge) {
		return true
	}
	return faults.Classify(err) == faults.Permanent
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (p *Pool) setCurrent(st *Status, id *int64) {
	p.mu.Lock()
	st.CurrentVideoID = id
	st.LastActivity = time.Now().UTC()
	p.mu.Unlock()
}

func (p *Pool) bumpProcessed(st *Status) {
	p.mu.Lock()
	st.Processed++
	st.LastActivity = time.Now().UTC()
	p.mu.Unlock()
}

func (p *Pool) bumpFailed(st *Status) {
	p.mu.Lock()
	st.Failed++
	st.LastActivity = time.Now().UTC()
	p.mu.Unlock()
}

// pollQueueDepth refreshes the queue depth gauges while the pool runs.
func (p *Pool) pollQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := p.db.Stats(ctx)
			if err != nil {
				continue
			}
			metrics.QueueDepth.WithLabelValues(string(models.VideoPending)).Set(float64(stats.Pending))
			metrics.QueueDepth.WithLabelValues(string(models.VideoProcessing)).Set(float64(stats.Processing))
			metrics.QueueDepth.WithLabelValues(string(models.VideoCompleted)).Set(float64(stats.Completed))
			metrics.QueueDepth.WithLabelValues(string(models.VideoFailed)).Set(float64(stats.Failed))
		}
	}
}
