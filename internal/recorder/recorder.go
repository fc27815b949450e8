package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuniesmith/fks-realtime/internal/channels"
	"github.com/nuniesmith/fks-realtime/internal/config"
)

// Metrics counts recorder activity.
type Metrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}

// Recorder buffers received frames and batch-inserts them into the frames
// table. It also upserts the latest connection status per instance.
type Recorder struct {
	cfg        config.RecorderConfig
	instanceID string
	logger     *slog.Logger

	input *FrameBuffer
	db    *pgxpool.Pool

	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Latest status, flushed alongside frame batches when it changed.
	statusMu      sync.Mutex
	status        string
	statusChanged bool

	metricsMu sync.Mutex
	metrics   Metrics
}

// New creates a recorder writing to db. The instance id tags every row so
// multiple streamers can share a table.
func New(cfg config.RecorderConfig, instanceID string, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:        cfg,
		instanceID: instanceID,
		logger:     logger,
		input:      NewFrameBuffer(cfg.BufferSize),
		db:         db,
	}
}

// Record enqueues one frame. Safe to use directly as a message listener;
// it never blocks the dispatch path.
func (r *Recorder) Record(msg channels.Message) {
	if !r.input.Send(msg) {
		r.metricsMu.Lock()
		r.metrics.Dropped++
		r.metricsMu.Unlock()
	}
}

// RecordStatus notes the latest connection status for the next flush.
func (r *Recorder) RecordStatus(status string) {
	r.statusMu.Lock()
	r.status = status
	r.statusChanged = true
	r.statusMu.Unlock()
}

// Start begins the flush loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder, flushing what remains.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	r.input.Close()
	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Final flush
	r.flush(context.Background())

	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	return r.metrics
}

// BufferStats exposes the input buffer's statistics.
func (r *Recorder) BufferStats() BufferStats {
	return r.input.Stats()
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// flush drains the buffer in batch-sized chunks and writes the latest
// status when it changed since the previous flush.
func (r *Recorder) flush(ctx context.Context) {
	for {
		batch := r.input.DrainTo(r.cfg.BatchSize)
		if len(batch) == 0 {
			break
		}

		start := time.Now()
		if err := r.insertFrames(ctx, batch); err != nil {
			r.logger.Error("frame batch insert failed", "error", err, "count", len(batch))
			r.metricsMu.Lock()
			r.metrics.Errors++
			r.metricsMu.Unlock()
			break
		}

		r.metricsMu.Lock()
		r.metrics.Inserts += int64(len(batch))
		r.metrics.Flushes++
		r.metricsMu.Unlock()

		r.logger.Debug("flushed frames",
			"count", len(batch),
			"duration", time.Since(start),
		)
	}

	r.flushStatus(ctx)
}

// insertFrames writes one batch using pgx.Batch.
func (r *Recorder) insertFrames(ctx context.Context, msgs []channels.Message) error {
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(`
			INSERT INTO frames (received_at, channel, payload, instance_id)
			VALUES ($1, $2, $3, $4)
		`, m.ReceivedAt, m.Channel, m.Data, r.instanceID)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range msgs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) flushStatus(ctx context.Context) {
	r.statusMu.Lock()
	status := r.status
	changed := r.statusChanged
	r.statusChanged = false
	r.statusMu.Unlock()

	if !changed {
		return
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO stream_status (instance_id, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (instance_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, r.instanceID, status, time.Now())
	if err != nil {
		r.logger.Error("status upsert failed", "error", err, "status", status)
		r.metricsMu.Lock()
		r.metrics.Errors++
		r.metricsMu.Unlock()
		// Retry on the next flush
		r.statusMu.Lock()
		r.statusChanged = true
		r.statusMu.Unlock()
	}
}
