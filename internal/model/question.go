package model

import "encoding/json"

// Question is one version of an authored question. Type selects the
// generation strategy used to build variants of it.
type Question struct {
	ID                   int64           `json:"id"`
	QID                  string          `json:"qid"`
	Type                 string          `json:"type"`
	Title                string          `json:"title"`
	CourseID             int64           `json:"course_id"`
	WorkspaceImage       *string         `json:"workspace_image,omitempty"`
	WorkspaceGradedFiles []string        `json:"workspace_graded_files,omitempty"`
	Options              json.RawMessage `json:"options,omitempty"`
	SharedPublicly       bool            `json:"shared_publicly"`
}

// HasWorkspace reports whether the question is backed by a workspace image.
func (q *Question) HasWorkspace() bool {
	return q.WorkspaceImage != nil
}

// InstanceQuestion is a single student's occurrence of a question inside an
// assessment instance.
type InstanceQuestion struct {
	ID                   int64 `json:"id"`
	QuestionID           int64 `json:"question_id"`
	AssessmentInstanceID int64 `json:"assessment_instance_id"`
	Open                 bool  `json:"open"`
}

// InstanceQuestionContext is where an instance question is being answered:
// the course and course instance, and the user the assessment instance
// belongs to. UserID is nil for group assessments.
type InstanceQuestionContext struct {
	Course           *Course
	CourseInstanceID int64
	UserID           *int64
}
