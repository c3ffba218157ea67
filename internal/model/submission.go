package model

import "time"

// GradingJobStatus enumerates external grading job states.
type GradingJobStatus string

const (
	GradingJobStatusRequested GradingJobStatus = "requested"
	GradingJobStatusQueued    GradingJobStatus = "queued"
	GradingJobStatusGrading   GradingJobStatus = "grading"
	GradingJobStatusGraded    GradingJobStatus = "graded"
	GradingJobStatusCanceled  GradingJobStatus = "canceled"
)

// SubmissionStatus is the compact per-submission row pushed to grading
// socket subscribers.
type SubmissionStatus struct {
	ID                 int64            `json:"id"`
	VariantID          int64            `json:"variant_id"`
	GradingJobID       *int64           `json:"grading_job_id"`
	GradingJobStatus   GradingJobStatus `json:"grading_job_status"`
	GradingRequestedAt *time.Time       `json:"grading_requested_at"`
	GradedAt           *time.Time       `json:"graded_at"`
	Score              *float64         `json:"score"`
}

// Submission is the full submission row used when rendering result panels.
type Submission struct {
	ID              int64          `json:"id"`
	VariantID       int64          `json:"variant_id"`
	SubmittedAnswer map[string]any `json:"submitted_answer"`
	Feedback        map[string]any `json:"feedback"`
	Score           *float64       `json:"score"`
	Correct         *bool          `json:"correct"`
	Gradable        bool           `json:"gradable"`
	Date            time.Time      `json:"date"`
	GradedAt        *time.Time     `json:"graded_at"`
}

// GradingJobStatusRequest is the callback payload posted by the external grader.
type GradingJobStatusRequest struct {
	Status GradingJobStatus `json:"status" binding:"required,oneof=requested queued grading graded canceled"`
}
