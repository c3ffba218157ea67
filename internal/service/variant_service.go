package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/workspace"
)

const (
	paramWorkspaceRequiredFileNames = "_workspace_required_file_names"
	paramRequiredFileNames          = "_required_file_names"

	variantIssueMessage = "Error creating question variant"
)

// VariantStore persists variants.
type VariantStore interface {
	FindReusable(ctx context.Context, instanceQuestionID int64, requireOpen bool) (*model.Variant, error)
	Insert(ctx context.Context, v *model.Variant, requireOpen bool) error
	GetByID(ctx context.Context, id int64) (*model.Variant, error)
}

// QuestionStore resolves questions.
type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	GetByInstanceQuestionID(ctx context.Context, instanceQuestionID int64) (*model.Question, error)
	IsSharedWithCourse(ctx context.Context, questionID, courseID int64) (bool, error)
}

// CourseStore resolves courses.
type CourseStore interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
	GetByInstanceQuestionID(ctx context.Context, instanceQuestionID int64) (*model.InstanceQuestionContext, error)
}

// IssueRecorder records course issues raised while building a variant or file.
type IssueRecorder interface {
	RecordCourseIssues(ctx context.Context, issues []model.CourseIssue, variant *model.Variant, authnUserID int64, studentMessage string, courseData map[string]any) error
}

// StrategyResolver returns the strategy for a question type.
type StrategyResolver interface {
	Get(questionType string) (questiontype.Strategy, error)
}

// VariantOptions controls variant creation. A non-nil VariantSeed is used
// verbatim instead of a random seed.
type VariantOptions struct {
	VariantSeed *string
}

// EnsureVariantParams carries the context a variant is created in. At least
// one of QuestionID and InstanceQuestionID must be set. QuestionCourse may be
// nil, in which case it is resolved from the question.
type EnsureVariantParams struct {
	QuestionID          *int64
	InstanceQuestionID  *int64
	UserID              *int64
	AuthnUserID         int64
	GroupWork           bool
	CourseInstanceID    *int64
	VariantCourse       *model.Course
	QuestionCourse      *model.Course
	Options             VariantOptions
	RequireOpen         bool
	ClientFingerprintID *uuid.UUID
}

// VariantService creates, reuses and serves files for question variants.
type VariantService struct {
	variants  VariantStore
	questions QuestionStore
	courses   CourseStore
	issues    IssueRecorder
	types     StrategyResolver
	log       zerolog.Logger

	// seedSource draws the random part of new seeds.
	seedSource func() uint32
}

// NewVariantService creates a new VariantService.
func NewVariantService(
	variants VariantStore,
	questions QuestionStore,
	courses CourseStore,
	issues IssueRecorder,
	types StrategyResolver,
	log zerolog.Logger,
) *VariantService {
	return &VariantService{
		variants:   variants,
		questions:  questions,
		courses:    courses,
		issues:     issues,
		types:      types,
		log:        log.With().Str("component", "variant_service").Logger(),
		seedSource: rand.Uint32,
	}
}

// EnsureVariant returns a usable variant for the given context. With an
// instance question, an existing variant is reused when one qualifies;
// otherwise a new variant is generated and inserted.
//
// When recording course issues fails after the insert, both the stored
// variant and an ErrIssueForwarding error are returned.
func (s *VariantService) EnsureVariant(ctx context.Context, p EnsureVariantParams) (*model.Variant, error) {
	if p.QuestionID == nil && p.InstanceQuestionID == nil {
		return nil, fmt.Errorf("%w: question_id and instance_question_id cannot both be null", ErrInvalidInput)
	}
	if p.VariantCourse == nil {
		return nil, fmt.Errorf("%w: variant course is required", ErrInvalidInput)
	}

	if p.InstanceQuestionID != nil {
		existing, err := s.variants.FindReusable(ctx, *p.InstanceQuestionID, p.RequireOpen)
		if err != nil {
			return nil, fmt.Errorf("%w: select variant for instance question: %w", ErrPersistence, err)
		}
		if existing != nil {
			s.log.Debug().
				Int64("variant_id", existing.ID).
				Int64("instance_question_id", *p.InstanceQuestionID).
				Msg("Reusing existing variant")
			return existing, nil
		}
	}

	return s.makeAndInsertVariant(ctx, p)
}

func (s *VariantService) makeAndInsertVariant(ctx context.Context, p EnsureVariantParams) (*model.Variant, error) {
	question, err := s.selectQuestion(ctx, p.QuestionID, p.InstanceQuestionID)
	if err != nil {
		return nil, err
	}

	if err := s.CheckQuestionAccess(ctx, question, p.VariantCourse); err != nil {
		return nil, err
	}

	questionCourse := p.QuestionCourse
	if questionCourse == nil {
		questionCourse, err = s.GetQuestionCourse(ctx, question, p.VariantCourse)
		if err != nil {
			return nil, err
		}
	}

	courseIssues, variant, err := s.MakeVariant(ctx, question, questionCourse, p.Options)
	if err != nil {
		return nil, err
	}

	variant.InstanceQuestionID = p.InstanceQuestionID
	variant.QuestionID = question.ID
	variant.CourseInstanceID = p.CourseInstanceID
	variant.UserID = p.UserID
	variant.AuthnUserID = p.AuthnUserID
	variant.GroupWork = p.GroupWork
	variant.Open = true
	variant.CourseID = p.VariantCourse.ID
	variant.ClientFingerprintID = p.ClientFingerprintID

	if err := s.variants.Insert(ctx, variant, p.RequireOpen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, repository.ErrInstanceQuestionClosed)
		}
		return nil, fmt.Errorf("%w: insert variant: %w", ErrPersistence, err)
	}

	s.log.Debug().
		Int64("variant_id", variant.ID).
		Int64("question_id", question.ID).
		Bool("broken", variant.Broken).
		Bool("floating", variant.IsFloating()).
		Int("course_issues", len(courseIssues)).
		Msg("Inserted variant")

	courseData := map[string]any{"variant": variant, "question": question, "course": p.VariantCourse}
	if err := s.issues.RecordCourseIssues(ctx, courseIssues, variant, p.AuthnUserID, variantIssueMessage, courseData); err != nil {
		return variant, fmt.Errorf("%w: %w", ErrIssueForwarding, err)
	}

	return variant, nil
}

// MakeVariant computes the contents of a new variant without storing it.
// Generation runs first; a fatal issue stops there and the generate output is
// returned as a broken variant. Otherwise workspace file names are added and
// prepare replaces params, true answer and options.
func (s *VariantService) MakeVariant(ctx context.Context, question *model.Question, course *model.Course, opts VariantOptions) ([]model.CourseIssue, *model.Variant, error) {
	seed := s.newSeed()
	if opts.VariantSeed != nil {
		seed = *opts.VariantSeed
	}

	strategy, err := s.types.Get(question.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	courseIssues, data, err := strategy.Generate(ctx, question, course, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: generate: %w", ErrGeneration, err)
	}
	data = data.Normalize()

	variant := &model.Variant{
		VariantSeed: seed,
		Params:      data.Params,
		TrueAnswer:  data.TrueAnswer,
		Options:     data.Options,
		Broken:      model.HasFatal(courseIssues),
	}
	if variant.Broken {
		return courseIssues, variant, nil
	}

	if question.HasWorkspace() {
		addWorkspaceFileNames(variant.Params, question.WorkspaceGradedFiles)
	}

	input := *variant
	input.Params = maps.Clone(variant.Params)
	input.TrueAnswer = maps.Clone(variant.TrueAnswer)
	input.Options = maps.Clone(variant.Options)

	extraIssues, data, err := strategy.Prepare(ctx, question, course, &input)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: prepare: %w", ErrGeneration, err)
	}
	courseIssues = append(courseIssues, extraIssues...)
	data = data.Normalize()

	return courseIssues, &model.Variant{
		VariantSeed: seed,
		Params:      data.Params,
		TrueAnswer:  data.TrueAnswer,
		Options:     data.Options,
		Broken:      model.HasFatal(courseIssues),
	}, nil
}

// GetFile builds a file generated from a variant's state by its question type.
func (s *VariantService) GetFile(ctx context.Context, filename string, variant *model.Variant, question *model.Question, variantCourse *model.Course, authnUserID int64) ([]byte, error) {
	strategy, err := s.types.Get(question.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	questionCourse, err := s.GetQuestionCourse(ctx, question, variantCourse)
	if err != nil {
		return nil, err
	}

	courseIssues, fileData, err := strategy.File(ctx, filename, variant, question, questionCourse)
	if err != nil {
		return nil, fmt.Errorf("%w: file %s: %w", ErrGeneration, filename, err)
	}

	courseData := map[string]any{"variant": variant, "question": question, "course": variantCourse}
	if err := s.issues.RecordCourseIssues(ctx, courseIssues, variant, authnUserID, "Error creating file: "+filename, courseData); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssueForwarding, err)
	}

	return fileData, nil
}

// GetQuestionCourse returns the course that owns the question. For a question
// imported through sharing this differs from the course it is used in.
func (s *VariantService) GetQuestionCourse(ctx context.Context, question *model.Question, variantCourse *model.Course) (*model.Course, error) {
	if variantCourse != nil && question.CourseID == variantCourse.ID {
		return variantCourse, nil
	}
	course, err := s.courses.GetByID(ctx, question.CourseID)
	if err != nil {
		return nil, storeError(err, "course")
	}
	return course, nil
}

// CheckQuestionAccess returns ErrQuestionNotShared when variantCourse may not
// use a question owned by another course. A foreign question is usable when
// it is shared publicly or sits in a sharing set shared with variantCourse.
func (s *VariantService) CheckQuestionAccess(ctx context.Context, question *model.Question, variantCourse *model.Course) error {
	if variantCourse == nil || question.CourseID == variantCourse.ID || question.SharedPublicly {
		return nil
	}
	shared, err := s.questions.IsSharedWithCourse(ctx, question.ID, variantCourse.ID)
	if err != nil {
		return fmt.Errorf("%w: check question sharing: %w", ErrPersistence, err)
	}
	if !shared {
		s.log.Warn().
			Int64("question_id", question.ID).
			Int64("course_id", variantCourse.ID).
			Msg("Question used outside its course without sharing")
		return ErrQuestionNotShared
	}
	return nil
}

// GetVariant loads a variant together with its question and the course it
// belongs to.
func (s *VariantService) GetVariant(ctx context.Context, variantID int64) (*model.Variant, *model.Question, *model.Course, error) {
	variant, err := s.variants.GetByID(ctx, variantID)
	if err != nil {
		return nil, nil, nil, storeError(err, "variant")
	}
	question, err := s.questions.GetByID(ctx, variant.QuestionID)
	if err != nil {
		return nil, nil, nil, storeError(err, "question")
	}
	course, err := s.courses.GetByID(ctx, variant.CourseID)
	if err != nil {
		return nil, nil, nil, storeError(err, "course")
	}
	return variant, question, course, nil
}

// GetCourse resolves a course by ID.
func (s *VariantService) GetCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, "course")
	}
	return course, nil
}

// GetInstanceQuestionContext returns the course, course instance and owning
// user of an instance question.
func (s *VariantService) GetInstanceQuestionContext(ctx context.Context, instanceQuestionID int64) (*model.InstanceQuestionContext, error) {
	iqc, err := s.courses.GetByInstanceQuestionID(ctx, instanceQuestionID)
	if err != nil {
		return nil, storeError(err, "instance question")
	}
	return iqc, nil
}

// GetQuestion resolves a question by ID.
func (s *VariantService) GetQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, storeError(err, "question")
	}
	return question, nil
}

func (s *VariantService) selectQuestion(ctx context.Context, questionID, instanceQuestionID *int64) (*model.Question, error) {
	var (
		question *model.Question
		err      error
	)
	switch {
	case questionID != nil:
		question, err = s.questions.GetByID(ctx, *questionID)
	case instanceQuestionID != nil:
		question, err = s.questions.GetByInstanceQuestionID(ctx, *instanceQuestionID)
	default:
		return nil, fmt.Errorf("%w: question_id and instance_question_id cannot both be null", ErrInvalidInput)
	}
	if err != nil {
		return nil, storeError(err, "question")
	}
	return question, nil
}

func (s *VariantService) newSeed() string {
	return strconv.FormatUint(uint64(s.seedSource()), 36)
}

// addWorkspaceFileNames records the literal graded file names of a workspace
// question and appends them to the required file list.
func addWorkspaceFileNames(params map[string]any, gradedFiles []string) {
	names := workspace.RequiredFileNames(gradedFiles)
	params[paramWorkspaceRequiredFileNames] = names

	required := toStringSlice(params[paramRequiredFileNames])
	params[paramRequiredFileNames] = append(required, names...)
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(e))
			}
		}
		return out
	default:
		return []string{}
	}
}

func storeError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: select %s: %w", ErrPersistence, what, err)
}
