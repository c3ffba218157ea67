package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/model"
)

// SubmissionRepository handles submission and grading job data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// statusQuery joins each submission with its most recent grading job.
const statusQuery = `
	SELECT s.id, s.variant_id, gj.id, COALESCE(gj.status, 'requested'),
	       gj.grading_requested_at, gj.graded_at, COALESCE(gj.score, s.score)
	FROM submissions s
	LEFT JOIN LATERAL (
		SELECT * FROM grading_jobs
		WHERE submission_id = s.id
		ORDER BY id DESC
		LIMIT 1
	) gj ON TRUE
`

func collectStatuses(rows pgx.Rows) ([]model.SubmissionStatus, error) {
	defer rows.Close()

	statuses := []model.SubmissionStatus{}
	for rows.Next() {
		var s model.SubmissionStatus
		if err := rows.Scan(&s.ID, &s.VariantID, &s.GradingJobID, &s.GradingJobStatus,
			&s.GradingRequestedAt, &s.GradedAt, &s.Score); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// ListStatusByVariant returns the grading status of every submission of a variant.
func (r *SubmissionRepository) ListStatusByVariant(ctx context.Context, variantID int64) ([]model.SubmissionStatus, error) {
	rows, err := r.pool.Query(ctx,
		statusQuery+` WHERE s.variant_id = $1 ORDER BY s.date DESC, s.id DESC`, variantID)
	if err != nil {
		return nil, err
	}
	return collectStatuses(rows)
}

// ListStatusForGradingJob returns the variant owning a grading job together
// with the grading status of every submission of that variant.
func (r *SubmissionRepository) ListStatusForGradingJob(ctx context.Context, gradingJobID int64) (int64, []model.SubmissionStatus, error) {
	var variantID int64
	err := r.pool.QueryRow(ctx,
		`SELECT s.variant_id
		 FROM grading_jobs gj
		 JOIN submissions s ON s.id = gj.submission_id
		 WHERE gj.id = $1`, gradingJobID,
	).Scan(&variantID)
	if err != nil {
		return 0, nil, err
	}

	statuses, err := r.ListStatusByVariant(ctx, variantID)
	if err != nil {
		return 0, nil, err
	}
	return variantID, statuses, nil
}

// GetByID retrieves a submission scoped to its variant.
func (r *SubmissionRepository) GetByID(ctx context.Context, variantID, submissionID int64) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, variant_id, submitted_answer, COALESCE(feedback, '{}'::jsonb),
		        score, correct, gradable, date, graded_at
		 FROM submissions
		 WHERE id = $1 AND variant_id = $2`, submissionID, variantID,
	).Scan(&s.ID, &s.VariantID, &s.SubmittedAnswer, &s.Feedback,
		&s.Score, &s.Correct, &s.Gradable, &s.Date, &s.GradedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateGradingJobStatus records a status change reported by the external grader.
func (r *SubmissionRepository) UpdateGradingJobStatus(ctx context.Context, gradingJobID int64, status model.GradingJobStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE grading_jobs
		 SET status = $2,
		     graded_at = CASE WHEN $2 = 'graded' THEN NOW() ELSE graded_at END
		 WHERE id = $1`, gradingJobID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
