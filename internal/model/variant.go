package model

import (
	"time"

	"github.com/google/uuid"
)

// Variant is one seeded instantiation of a question. Everything needed to
// re-render it deterministically is carried in VariantSeed, Params,
// TrueAnswer and Options.
type Variant struct {
	ID                  int64          `json:"id"`
	VariantSeed         string         `json:"variant_seed"`
	Params              map[string]any `json:"params"`
	TrueAnswer          map[string]any `json:"true_answer,omitempty"`
	Options             map[string]any `json:"options"`
	Broken              bool           `json:"broken"`
	InstanceQuestionID  *int64         `json:"instance_question_id"`
	QuestionID          int64          `json:"question_id"`
	CourseInstanceID    *int64         `json:"course_instance_id"`
	CourseID            int64          `json:"course_id"`
	UserID              *int64         `json:"user_id"`
	AuthnUserID         int64          `json:"authn_user_id"`
	GroupWork           bool           `json:"group_work"`
	Open                bool           `json:"open"`
	ClientFingerprintID *uuid.UUID     `json:"client_fingerprint_id"`
	Date                time.Time      `json:"date"`
}

// IsFloating reports whether the variant is not tied to any assessment.
func (v *Variant) IsFloating() bool {
	return v.InstanceQuestionID == nil
}

// WithoutTrueAnswer returns a copy of the variant with the true answer
// removed, for responses to students.
func (v *Variant) WithoutTrueAnswer() *Variant {
	out := *v
	out.TrueAnswer = nil
	return &out
}

// EnsureVariantRequest is the payload for creating or reusing a variant.
type EnsureVariantRequest struct {
	VariantSeed         *string    `json:"variant_seed" binding:"omitempty,min=1,max=64,alphanum"`
	CourseID            *int64     `json:"course_id" binding:"omitempty,min=1"`
	CourseInstanceID    *int64     `json:"course_instance_id" binding:"omitempty,min=1"`
	GroupWork           bool       `json:"group_work"`
	RequireOpen         *bool      `json:"require_open"`
	ClientFingerprintID *uuid.UUID `json:"client_fingerprint_id"`
}

// VariantResponse wraps a variant with the signed token the browser needs to
// subscribe to grading updates.
type VariantResponse struct {
	Variant      *Variant `json:"variant"`
	VariantToken string   `json:"variant_token"`
}
