package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVariantStore struct {
	mu        sync.Mutex
	rows      []*model.Variant
	reusable  *model.Variant
	closed    bool
	insertErr error
}

func (s *fakeVariantStore) FindReusable(_ context.Context, _ int64, _ bool) (*model.Variant, error) {
	return s.reusable, nil
}

func (s *fakeVariantStore) Insert(_ context.Context, v *model.Variant, requireOpen bool) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if requireOpen && s.closed {
		return pgx.ErrNoRows
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, v)
	return nil
}

func (s *fakeVariantStore) GetByID(_ context.Context, id int64) (*model.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.rows {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeVariantStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeQuestionStore struct {
	byID       map[int64]*model.Question
	byIQ       map[int64]*model.Question
	// sharedWith maps a question ID to the courses its sharing sets reach.
	sharedWith map[int64][]int64
	shareErr   error
}

func (s *fakeQuestionStore) GetByID(_ context.Context, id int64) (*model.Question, error) {
	if q, ok := s.byID[id]; ok {
		return q, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeQuestionStore) GetByInstanceQuestionID(_ context.Context, id int64) (*model.Question, error) {
	if q, ok := s.byIQ[id]; ok {
		return q, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeQuestionStore) IsSharedWithCourse(_ context.Context, questionID, courseID int64) (bool, error) {
	if s.shareErr != nil {
		return false, s.shareErr
	}
	return slices.Contains(s.sharedWith[questionID], courseID), nil
}

type fakeCourseStore struct {
	byID  map[int64]*model.Course
	reads int
}

func (s *fakeCourseStore) GetByID(_ context.Context, id int64) (*model.Course, error) {
	s.reads++
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeCourseStore) GetByInstanceQuestionID(_ context.Context, _ int64) (*model.InstanceQuestionContext, error) {
	return nil, pgx.ErrNoRows
}

type recordedIssues struct {
	issues         []model.CourseIssue
	variant        *model.Variant
	studentMessage string
}

type fakeIssueRecorder struct {
	mu    sync.Mutex
	calls []recordedIssues
	err   error
}

func (r *fakeIssueRecorder) RecordCourseIssues(_ context.Context, issues []model.CourseIssue, v *model.Variant, _ int64, studentMessage string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedIssues{issues: issues, variant: v, studentMessage: studentMessage})
	return r.err
}

// stubStrategy returns canned generate/prepare/file results and records
// what prepare was given.
type stubStrategy struct {
	genIssues  []model.CourseIssue
	genData    questiontype.Data
	prepIssues []model.CourseIssue
	prepData   *questiontype.Data
	fileIssues []model.CourseIssue

	mu           sync.Mutex
	prepareCalls int
	prepareSeen  *model.Variant
	seeds        []string
}

func (s *stubStrategy) Generate(_ context.Context, _ *model.Question, _ *model.Course, seed string) ([]model.CourseIssue, questiontype.Data, error) {
	s.mu.Lock()
	s.seeds = append(s.seeds, seed)
	s.mu.Unlock()
	return s.genIssues, s.genData, nil
}

func (s *stubStrategy) Prepare(_ context.Context, _ *model.Question, _ *model.Course, v *model.Variant) ([]model.CourseIssue, questiontype.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareCalls++
	s.prepareSeen = v
	if s.prepData != nil {
		return s.prepIssues, *s.prepData, nil
	}
	return s.prepIssues, questiontype.Data{Params: v.Params, TrueAnswer: v.TrueAnswer, Options: v.Options}, nil
}

func (s *stubStrategy) File(_ context.Context, filename string, _ *model.Variant, _ *model.Question, _ *model.Course) ([]model.CourseIssue, []byte, error) {
	return s.fileIssues, []byte(filename), nil
}

type variantFixture struct {
	svc       *VariantService
	variants  *fakeVariantStore
	questions *fakeQuestionStore
	courses   *fakeCourseStore
	issues    *fakeIssueRecorder
	strategy  *stubStrategy
	question  *model.Question
	course    *model.Course
	registry  *questiontype.Registry
}

func newVariantFixture(t *testing.T) *variantFixture {
	t.Helper()
	course := &model.Course{ID: 1, ShortName: "CS 101"}
	question := &model.Question{ID: 10, QID: "add", Type: "Stub", CourseID: 1}

	f := &variantFixture{
		variants: &fakeVariantStore{},
		courses:  &fakeCourseStore{byID: map[int64]*model.Course{1: course, 2: {ID: 2, ShortName: "CS 201"}}},
		issues:   &fakeIssueRecorder{},
		strategy: &stubStrategy{genData: questiontype.Data{Params: map[string]any{"a": 1}}},
		question: question,
		course:   course,
		registry: questiontype.NewRegistry(),
	}
	f.registry.Register("Stub", f.strategy)
	f.questions = &fakeQuestionStore{
		byID: map[int64]*model.Question{10: question},
		byIQ: map[int64]*model.Question{100: question},
	}
	f.svc = NewVariantService(f.variants, f.questions, f.courses, f.issues, f.registry, zerolog.Nop())
	return f
}

func ptr[T any](v T) *T { return &v }

func TestEnsureVariantRequiresQuestion(t *testing.T) {
	f := newVariantFixture(t)

	_, err := f.svc.EnsureVariant(context.Background(), EnsureVariantParams{VariantCourse: f.course, AuthnUserID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "question_id and instance_question_id cannot both be null")
	assert.Zero(t, f.variants.count())
	assert.Empty(t, f.issues.calls)
}

func TestEnsureVariantReusesExisting(t *testing.T) {
	f := newVariantFixture(t)
	existing := &model.Variant{ID: 42, InstanceQuestionID: ptr(int64(100))}
	f.variants.reusable = existing

	v, err := f.svc.EnsureVariant(context.Background(), EnsureVariantParams{
		InstanceQuestionID: ptr(int64(100)),
		VariantCourse:      f.course,
		AuthnUserID:        1,
		RequireOpen:        true,
	})
	require.NoError(t, err)
	assert.Same(t, existing, v)
	assert.Zero(t, f.variants.count())
	assert.Empty(t, f.strategy.seeds)
}

func TestEnsureVariantCreatesAndIsIdempotent(t *testing.T) {
	f := newVariantFixture(t)
	params := EnsureVariantParams{
		InstanceQuestionID: ptr(int64(100)),
		UserID:             ptr(int64(7)),
		AuthnUserID:        7,
		CourseInstanceID:   ptr(int64(3)),
		VariantCourse:      f.course,
		RequireOpen:        true,
	}

	first, err := f.svc.EnsureVariant(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(10), first.QuestionID)
	assert.Equal(t, int64(1), first.CourseID)
	assert.Equal(t, ptr(int64(3)), first.CourseInstanceID)
	assert.True(t, first.Open)
	assert.False(t, first.Broken)

	f.variants.reusable = first
	second, err := f.svc.EnsureVariant(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.variants.count())
}

func TestEnsureVariantClosedInstanceQuestion(t *testing.T) {
	f := newVariantFixture(t)
	f.variants.closed = true

	_, err := f.svc.EnsureVariant(context.Background(), EnsureVariantParams{
		InstanceQuestionID: ptr(int64(100)),
		VariantCourse:      f.course,
		AuthnUserID:        1,
		RequireOpen:        true,
	})
	assert.ErrorIs(t, err, repository.ErrInstanceQuestionClosed)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestEnsureVariantFatalIssueMakesBrokenVariant(t *testing.T) {
	f := newVariantFixture(t)
	f.question.WorkspaceImage = ptr("python")
	f.question.WorkspaceGradedFiles = []string{"out.txt"}
	f.strategy.genIssues = []model.CourseIssue{{Message: "division by zero", Fatal: true}}

	v, err := f.svc.EnsureVariant(context.Background(), EnsureVariantParams{
		QuestionID:    ptr(int64(10)),
		VariantCourse: f.course,
		AuthnUserID:   1,
	})
	require.NoError(t, err)
	assert.True(t, v.Broken)
	assert.Zero(t, f.strategy.prepareCalls)
	assert.Equal(t, map[string]any{"a": 1}, v.Params)

	require.Len(t, f.issues.calls, 1)
	call := f.issues.calls[0]
	assert.Equal(t, "Error creating question variant", call.studentMessage)
	assert.Equal(t, f.strategy.genIssues, call.issues)
	assert.Equal(t, v.ID, call.variant.ID)
}

func TestMakeVariantAddsWorkspaceFileNames(t *testing.T) {
	f := newVariantFixture(t)
	f.question.WorkspaceImage = ptr("python")
	f.question.WorkspaceGradedFiles = []string{"out.txt", "data/*.csv"}
	f.strategy.genData = questiontype.Data{Params: map[string]any{"_required_file_names": []any{"main.py"}}}

	_, v, err := f.svc.MakeVariant(context.Background(), f.question, f.course, VariantOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"out.txt"}, v.Params["_workspace_required_file_names"])
	assert.Equal(t, []string{"main.py", "out.txt"}, v.Params["_required_file_names"])
	assert.Equal(t, []string{"out.txt"}, f.strategy.prepareSeen.Params["_workspace_required_file_names"])
}

func TestMakeVariantWorkspaceWithoutRequiredList(t *testing.T) {
	f := newVariantFixture(t)
	f.question.WorkspaceImage = ptr("python")
	f.question.WorkspaceGradedFiles = []string{"out.txt"}

	_, v, err := f.svc.MakeVariant(context.Background(), f.question, f.course, VariantOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"out.txt"}, v.Params["_required_file_names"])
}

func TestMakeVariantPrepareReplacesData(t *testing.T) {
	f := newVariantFixture(t)
	f.strategy.genData = questiontype.Data{
		Params:     map[string]any{"a": 1, "b": 2},
		TrueAnswer: map[string]any{"c": 3},
	}
	f.strategy.prepData = &questiontype.Data{Params: map[string]any{"z": 9}}

	_, v, err := f.svc.MakeVariant(context.Background(), f.question, f.course, VariantOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"z": 9}, v.Params)
	assert.Equal(t, map[string]any{}, v.TrueAnswer)
	assert.Equal(t, map[string]any{}, v.Options)
}

func TestMakeVariantPrepareFatalIssue(t *testing.T) {
	f := newVariantFixture(t)
	f.strategy.prepIssues = []model.CourseIssue{{Message: "bad prepare", Fatal: true}}

	issues, v, err := f.svc.MakeVariant(context.Background(), f.question, f.course, VariantOptions{})
	require.NoError(t, err)
	assert.True(t, v.Broken)
	assert.Len(t, issues, 1)
}

func TestMakeVariantSeed(t *testing.T) {
	f := newVariantFixture(t)

	_, v, err := f.svc.MakeVariant(context.Background(), f.question, f.course, VariantOptions{VariantSeed: ptr("fixed")})
	require.NoError(t, err)
	assert.Equal(t, "fixed", v.VariantSeed)

	f.svc.seedSource = func() uint32 { return 1295 }
	_, v, err = f.svc.MakeVariant(context.Background(), f.question, f.course, VariantOptions{})
	require.NoError(t, err)
	assert.Equal(t, "zz", v.VariantSeed)
	assert.Equal(t, []string{"fixed", "zz"}, f.strategy.seeds)
}

func TestMakeVariantFixedSeedIsDeterministic(t *testing.T) {
	f := newVariantFixture(t)
	f.registry.Register(questiontype.TypeRandom, questiontype.Random{})
	q := &model.Question{
		ID:       11,
		Type:     questiontype.TypeRandom,
		CourseID: 1,
		Options:  []byte(`{"params":{"a":{"min":1,"max":1000}},"answer":{"name":"c","op":"sum","of":["a"]}}`),
	}

	_, first, err := f.svc.MakeVariant(context.Background(), q, f.course, VariantOptions{VariantSeed: ptr("s1")})
	require.NoError(t, err)
	_, second, err := f.svc.MakeVariant(context.Background(), q, f.course, VariantOptions{VariantSeed: ptr("s1")})
	require.NoError(t, err)
	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.TrueAnswer, second.TrueAnswer)
}

func TestMakeVariantUnknownType(t *testing.T) {
	f := newVariantFixture(t)
	q := &model.Question{ID: 12, Type: "Mystery", CourseID: 1}

	_, _, err := f.svc.MakeVariant(context.Background(), q, f.course, VariantOptions{})
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, questiontype.ErrUnknownType)
}

func TestEnsureVariantIssueForwardingFailure(t *testing.T) {
	f := newVariantFixture(t)
	f.strategy.genIssues = []model.CourseIssue{{Message: "warning"}}
	f.issues.err = errors.New("issues table unavailable")

	v, err := f.svc.EnsureVariant(context.Background(), EnsureVariantParams{
		QuestionID:    ptr(int64(10)),
		VariantCourse: f.course,
		AuthnUserID:   1,
	})
	assert.ErrorIs(t, err, ErrIssueForwarding)
	require.NotNil(t, v)
	assert.Equal(t, int64(1), v.ID)
	assert.Equal(t, 1, f.variants.count())
}

func TestEnsureVariantConcurrentCallsTolerateDuplicates(t *testing.T) {
	f := newVariantFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.EnsureVariant(context.Background(), EnsureVariantParams{
				InstanceQuestionID: ptr(int64(100)),
				VariantCourse:      f.course,
				AuthnUserID:        1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, f.variants.count())
}

func TestGetQuestionCourse(t *testing.T) {
	f := newVariantFixture(t)

	same, err := f.svc.GetQuestionCourse(context.Background(), f.question, f.course)
	require.NoError(t, err)
	assert.Same(t, f.course, same)
	assert.Zero(t, f.courses.reads)

	shared := &model.Question{ID: 20, CourseID: 2}
	other, err := f.svc.GetQuestionCourse(context.Background(), shared, f.course)
	require.NoError(t, err)
	assert.Equal(t, int64(2), other.ID)

	_, err = f.svc.GetQuestionCourse(context.Background(), &model.Question{CourseID: 99}, f.course)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureVariantForeignQuestionRequiresSharing(t *testing.T) {
	f := newVariantFixture(t)
	consumer := f.courses.byID[2]
	params := EnsureVariantParams{
		QuestionID:    ptr(int64(10)),
		VariantCourse: consumer,
		AuthnUserID:   1,
	}

	_, err := f.svc.EnsureVariant(context.Background(), params)
	assert.ErrorIs(t, err, ErrQuestionNotShared)
	assert.Zero(t, f.variants.count())
	assert.Empty(t, f.strategy.seeds)

	f.questions.sharedWith = map[int64][]int64{10: {2}}
	v, err := f.svc.EnsureVariant(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.CourseID)
	assert.Equal(t, 1, f.variants.count())
}

func TestCheckQuestionAccess(t *testing.T) {
	f := newVariantFixture(t)
	consumer := f.courses.byID[2]
	ctx := context.Background()

	assert.NoError(t, f.svc.CheckQuestionAccess(ctx, f.question, f.course))
	assert.ErrorIs(t, f.svc.CheckQuestionAccess(ctx, f.question, consumer), ErrQuestionNotShared)

	public := &model.Question{ID: 30, CourseID: 1, SharedPublicly: true}
	assert.NoError(t, f.svc.CheckQuestionAccess(ctx, public, consumer))

	f.questions.sharedWith = map[int64][]int64{10: {3}}
	assert.ErrorIs(t, f.svc.CheckQuestionAccess(ctx, f.question, consumer), ErrQuestionNotShared)

	f.questions.shareErr = errors.New("connection reset")
	assert.ErrorIs(t, f.svc.CheckQuestionAccess(ctx, f.question, consumer), ErrPersistence)
}

func TestGetFileRecordsIssuesWithFileName(t *testing.T) {
	f := newVariantFixture(t)
	f.strategy.fileIssues = []model.CourseIssue{{Message: "slow"}}
	v := &model.Variant{ID: 5, CourseID: 1}

	data, err := f.svc.GetFile(context.Background(), "data.txt", v, f.question, f.course, 1)
	require.NoError(t, err)
	assert.Equal(t, "data.txt", string(data))

	require.Len(t, f.issues.calls, 1)
	assert.Equal(t, "Error creating file: data.txt", f.issues.calls[0].studentMessage)
}

func TestGetVariantNotFound(t *testing.T) {
	f := newVariantFixture(t)

	_, _, _, err := f.svc.GetVariant(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
