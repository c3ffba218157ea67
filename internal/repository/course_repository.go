package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/model"
)

// CourseRepository handles course data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

func scanCourse(row pgx.Row) (*model.Course, error) {
	c := &model.Course{}
	if err := row.Scan(&c.ID, &c.ShortName, &c.Title, &c.Path, &c.SharingName, &c.SharingID); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID retrieves a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	return scanCourse(r.pool.QueryRow(ctx,
		`SELECT id, short_name, title, path, sharing_name, sharing_id
		 FROM courses WHERE id = $1`, id))
}

// Create inserts a new course and fills in its generated ID and sharing ID.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (short_name, title, path)
		 VALUES ($1, $2, $3)
		 RETURNING id, sharing_id`,
		c.ShortName, c.Title, c.Path,
	).Scan(&c.ID, &c.SharingID)
}

// GetByInstanceQuestionID returns the course an instance question is being
// answered in, its course instance ID and the assessment instance's owner.
func (r *CourseRepository) GetByInstanceQuestionID(ctx context.Context, instanceQuestionID int64) (*model.InstanceQuestionContext, error) {
	iqc := &model.InstanceQuestionContext{Course: &model.Course{}}
	c := iqc.Course
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.short_name, c.title, c.path, c.sharing_name, c.sharing_id, ci.id, ai.user_id
		 FROM instance_questions iq
		 JOIN assessment_instances ai ON ai.id = iq.assessment_instance_id
		 JOIN course_instances ci ON ci.id = ai.course_instance_id
		 JOIN courses c ON c.id = ci.course_id
		 WHERE iq.id = $1`, instanceQuestionID,
	).Scan(&c.ID, &c.ShortName, &c.Title, &c.Path, &c.SharingName, &c.SharingID, &iqc.CourseInstanceID, &iqc.UserID)
	if err != nil {
		return nil, err
	}
	return iqc, nil
}

// GetBySharingID retrieves a course by its sharing ID.
func (r *CourseRepository) GetBySharingID(ctx context.Context, sharingID uuid.UUID) (*model.Course, error) {
	return scanCourse(r.pool.QueryRow(ctx,
		`SELECT id, short_name, title, path, sharing_name, sharing_id
		 FROM courses WHERE sharing_id = $1`, sharingID))
}

// SetSharingName sets the sharing name only if none has been chosen yet.
// Returns false when the course already had a sharing name.
func (r *CourseRepository) SetSharingName(ctx context.Context, courseID int64, name string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses SET sharing_name = $2
		 WHERE id = $1 AND sharing_name IS NULL`, courseID, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SharingNameExists reports whether any course already uses name.
func (r *CourseRepository) SharingNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses WHERE sharing_name = $1)`, name,
	).Scan(&exists)
	return exists, err
}

// RegenerateSharingID assigns a fresh sharing ID and returns it.
func (r *CourseRepository) RegenerateSharingID(ctx context.Context, courseID int64) (uuid.UUID, error) {
	id := uuid.New()
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses SET sharing_id = $2 WHERE id = $1`, courseID, id)
	if err != nil {
		return uuid.Nil, err
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, pgx.ErrNoRows
	}
	return id, nil
}
