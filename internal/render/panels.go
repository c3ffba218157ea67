// Package render builds the HTML fragments refreshed after a submission is graded.
package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/stemsi/prairie-backend/internal/model"
)

// PanelRequest identifies the submission to render and the page it is shown on.
type PanelRequest struct {
	SubmissionID       int64
	QuestionID         int64
	InstanceQuestionID *int64
	VariantID          int64
	URLPrefix          string
	QuestionContext    string
	CSRFToken          string
	AuthorizedEdit     bool
	RenderScorePanels  bool
}

// Panels are the fragments the question page swaps in after grading.
type Panels struct {
	AnswerPanel           string `json:"answerPanel"`
	SubmissionPanel       string `json:"submissionPanel"`
	QuestionScorePanel    string `json:"questionScorePanel"`
	AssessmentScorePanel  string `json:"assessmentScorePanel"`
	QuestionPanelFooter   string `json:"questionPanelFooter"`
	QuestionNavNextButton string `json:"questionNavNextButton"`
}

// Loader fetches the rows a panel render needs.
type Loader interface {
	GetVariant(ctx context.Context, variantID int64) (*model.Variant, *model.Question, *model.Course, error)
}

// SubmissionLoader fetches a submission scoped to its variant.
type SubmissionLoader interface {
	GetByID(ctx context.Context, variantID, submissionID int64) (*model.Submission, error)
}

// HTMLRenderer renders panels with html/template.
type HTMLRenderer struct {
	variants    Loader
	submissions SubmissionLoader
}

// NewHTMLRenderer creates a new HTMLRenderer.
func NewHTMLRenderer(variants Loader, submissions SubmissionLoader) *HTMLRenderer {
	return &HTMLRenderer{variants: variants, submissions: submissions}
}

type panelData struct {
	Req        PanelRequest
	Variant    *model.Variant
	Question   *model.Question
	Course     *model.Course
	Submission *model.Submission
	ScorePct   *int
}

// RenderPanelsForSubmission renders every panel for one submission.
func (r *HTMLRenderer) RenderPanelsForSubmission(ctx context.Context, req PanelRequest) (*Panels, error) {
	variant, question, course, err := r.variants.GetVariant(ctx, req.VariantID)
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}
	if variant.QuestionID != req.QuestionID {
		return nil, fmt.Errorf("variant %d does not belong to question %d", req.VariantID, req.QuestionID)
	}
	submission, err := r.submissions.GetByID(ctx, req.VariantID, req.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}

	data := panelData{Req: req, Variant: variant, Question: question, Course: course, Submission: submission}
	if submission.Score != nil {
		pct := int(*submission.Score*100 + 0.5)
		data.ScorePct = &pct
	}

	panels := &Panels{}
	targets := []struct {
		name string
		dst  *string
		skip bool
	}{
		{"answer", &panels.AnswerPanel, false},
		{"submission", &panels.SubmissionPanel, false},
		{"questionScore", &panels.QuestionScorePanel, !req.RenderScorePanels},
		{"assessmentScore", &panels.AssessmentScorePanel, !req.RenderScorePanels || req.InstanceQuestionID == nil},
		{"footer", &panels.QuestionPanelFooter, false},
		{"navNext", &panels.QuestionNavNextButton, req.InstanceQuestionID == nil},
	}
	for _, t := range targets {
		if t.skip {
			continue
		}
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, t.name, data); err != nil {
			return nil, fmt.Errorf("render %s panel: %w", t.name, err)
		}
		*t.dst = buf.String()
	}
	return panels, nil
}
