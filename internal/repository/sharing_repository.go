package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/model"
)

// SharingRepository handles sharing set data access.
type SharingRepository struct {
	pool *pgxpool.Pool
}

// NewSharingRepository creates a new SharingRepository.
func NewSharingRepository(pool *pgxpool.Pool) *SharingRepository {
	return &SharingRepository{pool: pool}
}

// ListSetsByCourse returns a course's sharing sets with the courses each is
// shared with, ordered by set name.
func (r *SharingRepository) ListSetsByCourse(ctx context.Context, courseID int64) ([]model.SharingSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ss.id, ss.course_id, ss.name, c.id, c.short_name
		 FROM sharing_sets ss
		 LEFT JOIN sharing_set_courses ssc ON ssc.sharing_set_id = ss.id
		 LEFT JOIN courses c ON c.id = ssc.course_id
		 WHERE ss.course_id = $1
		 ORDER BY ss.name, ss.id, c.short_name`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := []model.SharingSet{}
	for rows.Next() {
		var (
			set        model.SharingSet
			sharedID   *int64
			sharedName *string
		)
		if err := rows.Scan(&set.ID, &set.CourseID, &set.Name, &sharedID, &sharedName); err != nil {
			return nil, err
		}
		if n := len(sets); n == 0 || sets[n-1].ID != set.ID {
			set.SharedWith = []model.SharedCourse{}
			sets = append(sets, set)
		}
		if sharedID != nil && sharedName != nil {
			last := &sets[len(sets)-1]
			last.SharedWith = append(last.SharedWith, model.SharedCourse{CourseID: *sharedID, ShortName: *sharedName})
		}
	}
	return sets, rows.Err()
}

// CreateSet inserts a new sharing set.
func (r *SharingRepository) CreateSet(ctx context.Context, set *model.SharingSet) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sharing_sets (course_id, name) VALUES ($1, $2) RETURNING id`,
		set.CourseID, set.Name,
	).Scan(&set.ID)
}

// AddCourse shares a set owned by courseID with another course.
// Returns pgx.ErrNoRows if the set does not belong to courseID.
func (r *SharingRepository) AddCourse(ctx context.Context, courseID, setID, consumerCourseID int64) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO sharing_set_courses (sharing_set_id, course_id)
		 SELECT ss.id, $3 FROM sharing_sets ss
		 WHERE ss.id = $2 AND ss.course_id = $1
		 ON CONFLICT DO NOTHING`, courseID, setID, consumerCourseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var owned bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM sharing_sets WHERE id = $1 AND course_id = $2)`, setID, courseID,
		).Scan(&owned); err != nil {
			return err
		}
		if !owned {
			return pgx.ErrNoRows
		}
	}
	return nil
}

// AddQuestion puts a question into a sharing set. Both the set and the
// question must belong to courseID; otherwise pgx.ErrNoRows is returned.
func (r *SharingRepository) AddQuestion(ctx context.Context, courseID, setID, questionID int64) error {
	var found bool
	err := r.pool.QueryRow(ctx,
		`WITH target AS (
		   SELECT ss.id AS set_id, q.id AS question_id
		   FROM sharing_sets ss
		   JOIN questions q ON q.course_id = ss.course_id
		   WHERE ss.id = $2 AND ss.course_id = $1
		     AND q.id = $3 AND q.deleted_at IS NULL
		 ), ins AS (
		   INSERT INTO sharing_set_questions (sharing_set_id, question_id)
		   SELECT set_id, question_id FROM target
		   ON CONFLICT DO NOTHING
		 )
		 SELECT EXISTS(SELECT 1 FROM target)`, courseID, setID, questionID,
	).Scan(&found)
	if err != nil {
		return err
	}
	if !found {
		return pgx.ErrNoRows
	}
	return nil
}

// RemoveCourse revokes a consuming course's access to a set owned by courseID.
func (r *SharingRepository) RemoveCourse(ctx context.Context, courseID, setID, consumerCourseID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sharing_set_courses ssc
		 USING sharing_sets ss
		 WHERE ssc.sharing_set_id = ss.id
		   AND ss.id = $2 AND ss.course_id = $1 AND ssc.course_id = $3`,
		courseID, setID, consumerCourseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
