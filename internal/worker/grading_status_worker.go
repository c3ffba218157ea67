package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
)

const (
	GradingStatusBatchSize   = 50
	GradingStatusPollTimeout = 1 * time.Second
)

// Queue is the slice of the Redis client the worker consumes from.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// StatusNotifier broadcasts the submissions of a grading job's variant.
type StatusNotifier interface {
	GradingJobStatusUpdated(ctx context.Context, gradingJobID int64) error
}

// GradingStatusWorker drains grading job ids queued by the grader callback
// and notifies the variant's subscribers. A job updated several times within
// one batch is announced once. Failed notifications are logged and dropped;
// the next status change for the job announces the current state again.
type GradingStatusWorker struct {
	queue        Queue
	notifier     StatusNotifier
	batchTimeout time.Duration
	pollTimeout  time.Duration
	log          zerolog.Logger
}

func NewGradingStatusWorker(queue Queue, notifier StatusNotifier, batchTimeout time.Duration, log zerolog.Logger) *GradingStatusWorker {
	return &GradingStatusWorker{
		queue:        queue,
		notifier:     notifier,
		batchTimeout: batchTimeout,
		pollTimeout:  GradingStatusPollTimeout,
		log:          log.With().Str("component", "grading_status_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *GradingStatusWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingStatusWorker started")

	batch := make([]int64, 0, GradingStatusBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= GradingStatusBatchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.queue.BLPop(ctx, w.pollTimeout, config.WorkerKey.GradingJobStatusQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			jobID, err := strconv.ParseInt(item[1], 10, 64)
			if err != nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid grading job id")
				continue
			}

			if len(batch) == 0 {
				lastFlush = time.Now()
			}
			batch = append(batch, jobID)
		}
	}
}

// ----------------------------------------------------------------
// Batch notify
// ----------------------------------------------------------------

func (w *GradingStatusWorker) flushSafe(ctx context.Context, batch []int64) {
	for _, jobID := range dedupe(batch) {
		err := w.notifier.GradingJobStatusUpdated(ctx, jobID)
		if err == nil {
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) {
			w.log.Warn().Int64("grading_job_id", jobID).Msg("Grading job has no submission, dropping")
			continue
		}
		w.log.Error().Err(err).Int64("grading_job_id", jobID).Msg("gradingJobStatusUpdated failed, dropping")
	}
}

// dedupe keeps the first occurrence of each id, preserving order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
