package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/model"
)

const questionColumns = `q.id, q.qid, q.type, q.title, q.course_id, q.workspace_image,
	q.workspace_graded_files, q.options, q.shared_publicly`

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.QID, &q.Type, &q.Title, &q.CourseID, &q.WorkspaceImage,
		&q.WorkspaceGradedFiles, &q.Options, &q.SharedPublicly)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetByID retrieves a live question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 WHERE q.id = $1 AND q.deleted_at IS NULL`, id))
}

// GetByInstanceQuestionID retrieves the question behind an instance question.
func (r *QuestionRepository) GetByInstanceQuestionID(ctx context.Context, instanceQuestionID int64) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 JOIN instance_questions iq ON iq.question_id = q.id
		 WHERE iq.id = $1`, instanceQuestionID))
}

// IsSharedWithCourse reports whether a question sits in a sharing set that
// has been shared with courseID.
func (r *QuestionRepository) IsSharedWithCourse(ctx context.Context, questionID, courseID int64) (bool, error) {
	var shared bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM sharing_set_questions ssq
		   JOIN sharing_set_courses ssc ON ssc.sharing_set_id = ssq.sharing_set_id
		   WHERE ssq.question_id = $1 AND ssc.course_id = $2)`, questionID, courseID,
	).Scan(&shared)
	return shared, err
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	if q.WorkspaceGradedFiles == nil {
		q.WorkspaceGradedFiles = []string{}
	}
	if q.Options == nil {
		q.Options = []byte(`{}`)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (qid, type, title, course_id, workspace_image, workspace_graded_files, options, shared_publicly)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		q.QID, q.Type, q.Title, q.CourseID, q.WorkspaceImage, q.WorkspaceGradedFiles, q.Options, q.SharedPublicly,
	).Scan(&q.ID)
}
