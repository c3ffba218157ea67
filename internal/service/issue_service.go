package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/repository"
)

// IssueStore writes issue rows.
type IssueStore interface {
	InsertAll(ctx context.Context, rows []repository.IssueRow) error
}

// IssueService records course issues against the variant that raised them.
type IssueService struct {
	store IssueStore
	log   zerolog.Logger
}

// NewIssueService creates a new IssueService.
func NewIssueService(store IssueStore, log zerolog.Logger) *IssueService {
	return &IssueService{
		store: store,
		log:   log.With().Str("component", "issue_service").Logger(),
	}
}

// RecordCourseIssues stores one issue row per course issue. studentMessage is
// what the student sees; each issue's own message goes to the instructor.
func (s *IssueService) RecordCourseIssues(
	ctx context.Context,
	issues []model.CourseIssue,
	variant *model.Variant,
	authnUserID int64,
	studentMessage string,
	courseData map[string]any,
) error {
	if len(issues) == 0 {
		return nil
	}

	var variantID, courseID *int64
	if variant != nil {
		if variant.ID != 0 {
			variantID = &variant.ID
		}
		if variant.CourseID != 0 {
			courseID = &variant.CourseID
		}
	}

	rows := make([]repository.IssueRow, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, repository.IssueRow{
			StudentMessage:    studentMessage,
			InstructorMessage: issue.Message,
			Fatal:             issue.Fatal,
			CourseData:        courseData,
			SystemData:        map[string]any{"courseErrData": issue.Data},
			CourseID:          courseID,
			VariantID:         variantID,
			AuthnUserID:       authnUserID,
		})

		s.log.Warn().
			Interface("variant_id", variantID).
			Bool("fatal", issue.Fatal).
			Str("student_message", studentMessage).
			Msg(issue.Message)
	}

	return s.store.InsertAll(ctx, rows)
}
