package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/model"
)

// GradingJobStore updates grading job rows.
type GradingJobStore interface {
	UpdateGradingJobStatus(ctx context.Context, gradingJobID int64, status model.GradingJobStatus) error
}

// QueuePusher is the slice of the Redis client used to enqueue work.
type QueuePusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// GradingJobService records status callbacks from the external grader and
// queues the job for a status broadcast.
type GradingJobService struct {
	jobs  GradingJobStore
	queue QueuePusher
	log   zerolog.Logger
}

// NewGradingJobService creates a new GradingJobService.
func NewGradingJobService(jobs GradingJobStore, queue QueuePusher, log zerolog.Logger) *GradingJobService {
	return &GradingJobService{
		jobs:  jobs,
		queue: queue,
		log:   log.With().Str("component", "grading_job_service").Logger(),
	}
}

// UpdateStatus stores the new status and enqueues the job id.
func (s *GradingJobService) UpdateStatus(ctx context.Context, gradingJobID int64, status model.GradingJobStatus) error {
	if err := s.jobs.UpdateGradingJobStatus(ctx, gradingJobID, status); err != nil {
		return storeError(err, "grading job")
	}
	if err := s.queue.RPush(ctx, config.WorkerKey.GradingJobStatusQueue, gradingJobID).Err(); err != nil {
		return fmt.Errorf("%w: enqueue grading job %d: %w", ErrPersistence, gradingJobID, err)
	}
	s.log.Debug().Int64("grading_job_id", gradingJobID).Str("status", string(status)).Msg("Grading job status recorded")
	return nil
}
