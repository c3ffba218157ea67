package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/prairie-backend/internal/database"
)

// IssueRow is one course issue ready to be written to the issues table.
type IssueRow struct {
	StudentMessage    string
	InstructorMessage string
	Fatal             bool
	CourseData        map[string]any
	SystemData        map[string]any
	CourseID          *int64
	VariantID         *int64
	AuthnUserID       int64
}

// IssueRepository handles course issue persistence.
type IssueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository creates a new IssueRepository.
func NewIssueRepository(pool *pgxpool.Pool) *IssueRepository {
	return &IssueRepository{pool: pool}
}

// InsertAll writes every row in a single transaction.
func (r *IssueRepository) InsertAll(ctx context.Context, rows []IssueRow) error {
	if len(rows) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(
				`INSERT INTO issues (student_message, instructor_message, course_caused, fatal,
				                     course_data, system_data, course_id, variant_id, authn_user_id)
				 VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7, $8)`,
				row.StudentMessage, row.InstructorMessage, row.Fatal,
				row.CourseData, row.SystemData, row.CourseID, row.VariantID, row.AuthnUserID,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range rows {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert issue %d: %w", i, err)
			}
		}
		return br.Close()
	})
}
