package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/model"
)

const variantColumns = `v.id, v.variant_seed, v.params, v.true_answer, v.options, v.broken,
	v.instance_question_id, v.question_id, v.course_instance_id, v.course_id,
	v.user_id, v.authn_user_id, v.group_work, v.open, v.client_fingerprint_id, v.date`

// VariantRepository handles variant data access.
type VariantRepository struct {
	pool *pgxpool.Pool
}

// NewVariantRepository creates a new VariantRepository.
func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

func scanVariant(row pgx.Row) (*model.Variant, error) {
	v := &model.Variant{}
	err := row.Scan(
		&v.ID, &v.VariantSeed, &v.Params, &v.TrueAnswer, &v.Options, &v.Broken,
		&v.InstanceQuestionID, &v.QuestionID, &v.CourseInstanceID, &v.CourseID,
		&v.UserID, &v.AuthnUserID, &v.GroupWork, &v.Open, &v.ClientFingerprintID, &v.Date,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetByID retrieves a variant by ID.
func (r *VariantRepository) GetByID(ctx context.Context, id int64) (*model.Variant, error) {
	return scanVariant(r.pool.QueryRow(ctx,
		`SELECT `+variantColumns+` FROM variants v WHERE v.id = $1`, id))
}

// FindReusable returns the most recent non-broken variant of an instance
// question. With requireOpen only a variant still accepting submissions
// (variant, instance question and assessment instance all open) qualifies.
// Returns (nil, nil) when there is nothing to reuse.
func (r *VariantRepository) FindReusable(ctx context.Context, instanceQuestionID int64, requireOpen bool) (*model.Variant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx,
		`SELECT `+variantColumns+`
		 FROM variants v
		 JOIN instance_questions iq ON iq.id = v.instance_question_id
		 JOIN assessment_instances ai ON ai.id = iq.assessment_instance_id
		 WHERE v.instance_question_id = $1
		   AND NOT v.broken
		   AND (NOT $2 OR (v.open AND iq.open AND ai.open))
		 ORDER BY v.date DESC, v.id DESC
		 LIMIT 1`, instanceQuestionID, requireOpen,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// ErrInstanceQuestionClosed is returned by Insert when requireOpen is set and
// the instance question no longer accepts new variants.
var ErrInstanceQuestionClosed = errors.New("instance question is not open")

// Insert writes a new variant row and fills in its generated columns. With
// requireOpen and an instance question, nothing is written unless the
// instance question and its assessment instance are still open, and
// pgx.ErrNoRows is returned.
func (r *VariantRepository) Insert(ctx context.Context, v *model.Variant, requireOpen bool) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO variants (
			variant_seed, params, true_answer, options, broken,
			instance_question_id, question_id, course_instance_id, user_id,
			authn_user_id, group_work, open, course_id, client_fingerprint_id
		 )
		 SELECT $1::text, $2::jsonb, $3::jsonb, $4::jsonb, $5::boolean,
		        $6::bigint, $7::bigint, $8::bigint, $9::bigint,
		        $10::bigint, $11::boolean, $12::boolean, $13::bigint, $14::uuid
		 WHERE NOT $15::boolean
		    OR $6::bigint IS NULL
		    OR EXISTS (
		        SELECT 1
		        FROM instance_questions iq
		        JOIN assessment_instances ai ON ai.id = iq.assessment_instance_id
		        WHERE iq.id = $6::bigint AND iq.open AND ai.open
		    )
		 RETURNING id, date`,
		v.VariantSeed, v.Params, v.TrueAnswer, v.Options, v.Broken,
		v.InstanceQuestionID, v.QuestionID, v.CourseInstanceID, v.UserID,
		v.AuthnUserID, v.GroupWork, v.Open, v.CourseID, v.ClientFingerprintID,
		requireOpen,
	).Scan(&v.ID, &v.Date)
}

// CountByInstanceQuestion returns how many variants exist for an instance question.
func (r *VariantRepository) CountByInstanceQuestion(ctx context.Context, instanceQuestionID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM variants WHERE instance_question_id = $1`, instanceQuestionID,
	).Scan(&n)
	return n, err
}
