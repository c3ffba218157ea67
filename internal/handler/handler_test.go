package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/middleware"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/render"
	"github.com/stemsi/prairie-backend/internal/response"
	"github.com/stemsi/prairie-backend/internal/service"
	"github.com/stemsi/prairie-backend/internal/validator"
	ws "github.com/stemsi/prairie-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// ─── Fakes ──────────────────────────────────────────────────────────

type memVariants struct {
	rows   map[int64]*model.Variant
	closed bool
}

func (s *memVariants) FindReusable(_ context.Context, _ int64, _ bool) (*model.Variant, error) {
	return nil, nil
}

func (s *memVariants) Insert(_ context.Context, v *model.Variant, requireOpen bool) error {
	if requireOpen && s.closed {
		return pgx.ErrNoRows
	}
	v.ID = int64(len(s.rows) + 1)
	s.rows[v.ID] = v
	return nil
}

func (s *memVariants) GetByID(_ context.Context, id int64) (*model.Variant, error) {
	if v, ok := s.rows[id]; ok {
		return v, nil
	}
	return nil, pgx.ErrNoRows
}

type memQuestions struct {
	q          *model.Question
	// sharedWith lists the courses q is shared with through sharing sets.
	sharedWith map[int64]bool
}

func (s memQuestions) GetByID(_ context.Context, id int64) (*model.Question, error) {
	if id == s.q.ID {
		return s.q, nil
	}
	return nil, pgx.ErrNoRows
}

func (s memQuestions) GetByInstanceQuestionID(_ context.Context, _ int64) (*model.Question, error) {
	return s.q, nil
}

func (s memQuestions) IsSharedWithCourse(_ context.Context, questionID, courseID int64) (bool, error) {
	return questionID == s.q.ID && s.sharedWith[courseID], nil
}

// memCourses holds courses by ID. Instance question 100 belongs to user 7
// in course 1.
type memCourses map[int64]*model.Course

func (s memCourses) GetByID(_ context.Context, id int64) (*model.Course, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

func (s memCourses) GetByInstanceQuestionID(_ context.Context, id int64) (*model.InstanceQuestionContext, error) {
	if id != 100 {
		return nil, pgx.ErrNoRows
	}
	owner := int64(7)
	return &model.InstanceQuestionContext{Course: s[1], CourseInstanceID: 3, UserID: &owner}, nil
}

type nopIssues struct{}

func (nopIssues) RecordCourseIssues(context.Context, []model.CourseIssue, *model.Variant, int64, string, map[string]any) error {
	return nil
}

type memStatuses struct{}

func (memStatuses) ListStatusByVariant(_ context.Context, variantID int64) ([]model.SubmissionStatus, error) {
	return []model.SubmissionStatus{{ID: 1, VariantID: variantID, GradingJobStatus: model.GradingJobStatusQueued}}, nil
}

func (memStatuses) ListStatusForGradingJob(context.Context, int64) (int64, []model.SubmissionStatus, error) {
	return 0, nil, pgx.ErrNoRows
}

type nopRenderer struct{}

func (nopRenderer) RenderPanelsForSubmission(context.Context, render.PanelRequest) (*render.Panels, error) {
	return &render.Panels{}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) *redis.IntCmd {
	return redis.NewIntResult(0, nil)
}

type memJobs struct{ known map[int64]bool }

func (s memJobs) UpdateGradingJobStatus(_ context.Context, id int64, _ model.GradingJobStatus) error {
	if !s.known[id] {
		return pgx.ErrNoRows
	}
	return nil
}

type memQueue struct{ pushed []interface{} }

func (q *memQueue) RPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	q.pushed = append(q.pushed, values...)
	return redis.NewIntResult(int64(len(q.pushed)), nil)
}

// ─── Helpers ────────────────────────────────────────────────────────

func newTokenService(t *testing.T) *service.TokenService {
	t.Helper()
	tokens, err := service.NewTokenService(&config.Config{SecretKey: "handler-test", VariantTokenMaxAge: time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	return tokens
}

func asUser(identity *service.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyIdentity, identity)
		c.Next()
	}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type variantEnv struct {
	handler   *VariantHandler
	variants  *memVariants
	questions memQuestions
}

func newVariantEnv(t *testing.T) *variantEnv {
	t.Helper()
	q := &model.Question{ID: 10, QID: "fixed", Type: questiontype.TypeStatic, CourseID: 1,
		Options: json.RawMessage(`{"params":{"x":1},"true_answer":{"y":2}}`)}
	variants := &memVariants{rows: map[int64]*model.Variant{}}
	questions := memQuestions{q: q, sharedWith: map[int64]bool{}}
	courses := memCourses{1: {ID: 1}, 2: {ID: 2}}
	svc := service.NewVariantService(variants, questions, courses, nopIssues{},
		questiontype.NewDefaultRegistry(), zerolog.Nop())
	return &variantEnv{
		handler:   NewVariantHandler(svc, newTokenService(t), zerolog.Nop()),
		variants:  variants,
		questions: questions,
	}
}

func (e *variantEnv) router(identity *service.Identity) *gin.Engine {
	r := gin.New()
	r.Use(asUser(identity))
	r.POST("/questions/:question_id/variants", e.handler.CreateQuestionVariant)
	r.POST("/instance-questions/:iq_id/variant", e.handler.EnsureInstanceQuestionVariant)
	r.GET("/variants/:variant_id", e.handler.GetVariant)
	r.GET("/variants/:variant_id/files/:filename", e.handler.GetVariantFile)
	return r
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ─── Variant handler ────────────────────────────────────────────────

func TestCreateQuestionVariant(t *testing.T) {
	e := newVariantEnv(t)
	r := e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent})

	w := serve(r, http.MethodPost, "/questions/10/variants", `{"variant_seed":"abc"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body model.VariantResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	assert.Equal(t, "abc", body.Variant.VariantSeed)
	assert.Equal(t, map[string]any{"x": float64(1)}, body.Variant.Params)
	assert.NotEmpty(t, body.VariantToken)
	assert.Nil(t, body.Variant.InstanceQuestionID)
}

func TestCreateQuestionVariantErrors(t *testing.T) {
	e := newVariantEnv(t)
	r := e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent})

	w := serve(r, http.MethodPost, "/questions/abc/variants", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, decode(t, w).Error.Code)

	w = serve(r, http.MethodPost, "/questions/99/variants", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodPost, "/questions/10/variants", `{"variant_seed":"not valid!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, decode(t, w).Error.Code)
}

func TestEnsureInstanceQuestionVariantClosed(t *testing.T) {
	e := newVariantEnv(t)
	e.variants.closed = true
	r := e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent})

	w := serve(r, http.MethodPost, "/instance-questions/100/variant", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrInstanceQuestionClosed, decode(t, w).Error.Code)

	w = serve(r, http.MethodPost, "/instance-questions/100/variant", `{"require_open":false}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPost, "/instance-questions/404/variant", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// variantFields decodes the variant object of a response as raw keys.
func variantFields(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body struct {
		Variant map[string]json.RawMessage `json:"variant"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	return body.Variant
}

func TestCreateQuestionVariantHidesTrueAnswerFromStudents(t *testing.T) {
	e := newVariantEnv(t)

	w := serve(e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent}),
		http.MethodPost, "/questions/10/variants", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, variantFields(t, w), "true_answer")
	assert.Equal(t, map[string]any{"y": float64(2)}, e.variants.rows[1].TrueAnswer)

	w = serve(e.router(&service.Identity{UserID: 1, AuthnUserID: 1, Role: model.RoleInstructor}),
		http.MethodPost, "/questions/10/variants", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"y":2}`, string(variantFields(t, w)["true_answer"]))
}

func TestCreateQuestionVariantForeignCourse(t *testing.T) {
	e := newVariantEnv(t)
	r := e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent})

	w := serve(r, http.MethodPost, "/questions/10/variants", `{"course_id":2}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrQuestionNotShared, decode(t, w).Error.Code)
	assert.Empty(t, e.variants.rows)

	e.questions.sharedWith[2] = true
	w = serve(r, http.MethodPost, "/questions/10/variants", `{"course_id":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body model.VariantResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	assert.Equal(t, int64(2), body.Variant.CourseID)
}

func TestEnsureInstanceQuestionVariantOwnership(t *testing.T) {
	e := newVariantEnv(t)

	w := serve(e.router(&service.Identity{UserID: 8, AuthnUserID: 8, Role: model.RoleStudent}),
		http.MethodPost, "/instance-questions/100/variant", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrForbidden, decode(t, w).Error.Code)
	assert.Empty(t, e.variants.rows)

	w = serve(e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent}),
		http.MethodPost, "/instance-questions/100/variant", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fields := variantFields(t, w)
	assert.NotContains(t, fields, "true_answer")
	assert.JSONEq(t, `100`, string(fields["instance_question_id"]))

	w = serve(e.router(&service.Identity{UserID: 1, AuthnUserID: 1, Role: model.RoleInstructor}),
		http.MethodPost, "/instance-questions/100/variant", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, variantFields(t, w), "true_answer")
}

func TestGetVariantOwnership(t *testing.T) {
	e := newVariantEnv(t)
	owner := int64(7)
	e.variants.rows[1] = &model.Variant{ID: 1, QuestionID: 10, CourseID: 1, UserID: &owner, AuthnUserID: 7,
		Params: map[string]any{"x": 1}}

	w := serve(e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent}), http.MethodGet, "/variants/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(e.router(&service.Identity{UserID: 8, AuthnUserID: 8, Role: model.RoleStudent}), http.MethodGet, "/variants/1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(e.router(&service.Identity{UserID: 1, AuthnUserID: 1, Role: model.RoleInstructor}), http.MethodGet, "/variants/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent}), http.MethodGet, "/variants/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVariantFile(t *testing.T) {
	e := newVariantEnv(t)
	e.variants.rows[1] = &model.Variant{ID: 1, QuestionID: 10, CourseID: 1, AuthnUserID: 7,
		Params: map[string]any{"x": 1}}
	r := e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent})

	w := serve(r, http.MethodGet, "/variants/1/files/params.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"x":1}`, w.Body.String())

	w = serve(r, http.MethodGet, "/variants/1/files/missing.txt", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrVariantFileNotFound, decode(t, w).Error.Code)
}

func TestGetVariantFileTrueAnswerInstructorOnly(t *testing.T) {
	e := newVariantEnv(t)
	e.variants.rows[1] = &model.Variant{ID: 1, QuestionID: 10, CourseID: 1, AuthnUserID: 7,
		Params: map[string]any{"x": 1}, TrueAnswer: map[string]any{"y": 2}}

	w := serve(e.router(&service.Identity{UserID: 7, AuthnUserID: 7, Role: model.RoleStudent}),
		http.MethodGet, "/variants/1/files/true_answer.json", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrVariantFileNotFound, decode(t, w).Error.Code)

	w = serve(e.router(&service.Identity{UserID: 1, AuthnUserID: 1, Role: model.RoleInstructor}),
		http.MethodGet, "/variants/1/files/true_answer.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"y":2}`, w.Body.String())
}

// ─── Sharing handler ────────────────────────────────────────────────

// memSharing serves both sharing stores. Course 1 owns set 1 and question 10.
type memSharing struct {
	added []int64
}

func (s *memSharing) GetByID(_ context.Context, id int64) (*model.Course, error) {
	if id != 1 {
		return nil, pgx.ErrNoRows
	}
	return &model.Course{ID: 1}, nil
}

func (s *memSharing) GetBySharingID(context.Context, uuid.UUID) (*model.Course, error) {
	return nil, pgx.ErrNoRows
}

func (s *memSharing) SetSharingName(context.Context, int64, string) (bool, error) { return true, nil }

func (s *memSharing) SharingNameExists(context.Context, string) (bool, error) { return false, nil }

func (s *memSharing) RegenerateSharingID(context.Context, int64) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *memSharing) ListSetsByCourse(context.Context, int64) ([]model.SharingSet, error) {
	return []model.SharingSet{}, nil
}

func (s *memSharing) CreateSet(_ context.Context, set *model.SharingSet) error {
	set.ID = 1
	return nil
}

func (s *memSharing) AddCourse(context.Context, int64, int64, int64) error { return nil }

func (s *memSharing) AddQuestion(_ context.Context, courseID, setID, questionID int64) error {
	if courseID != 1 || setID != 1 || questionID != 10 {
		return pgx.ErrNoRows
	}
	s.added = append(s.added, questionID)
	return nil
}

func (s *memSharing) RemoveCourse(context.Context, int64, int64, int64) error { return nil }

func TestAddQuestionToSharingSet(t *testing.T) {
	store := &memSharing{}
	h := NewSharingHandler(service.NewSharingService(true, store, store, zerolog.Nop()), zerolog.Nop())
	r := gin.New()
	r.POST("/courses/:course_id/sharing/sets/:set_id/questions", h.AddQuestionToSharingSet)

	w := serve(r, http.MethodPost, "/courses/1/sharing/sets/1/questions", `{"question_id":10}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int64{10}, store.added)

	w = serve(r, http.MethodPost, "/courses/1/sharing/sets/1/questions", `{"question_id":11}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodPost, "/courses/1/sharing/sets/1/questions", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, decode(t, w).Error.Code)

	w = serve(r, http.MethodPost, "/courses/1/sharing/sets/x/questions", `{"question_id":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, store.added, 1)
}

// ─── Grading handler ────────────────────────────────────────────────

func TestUpdateGradingJobStatus(t *testing.T) {
	queue := &memQueue{}
	jobs := service.NewGradingJobService(memJobs{known: map[int64]bool{5: true}}, queue, zerolog.Nop())
	h := NewGradingHandler(jobs, zerolog.Nop())
	r := gin.New()
	r.POST("/grading-jobs/:job_id/status", h.UpdateGradingJobStatus)

	w := serve(r, http.MethodPost, "/grading-jobs/5/status", `{"status":"graded"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []interface{}{int64(5)}, queue.pushed)

	w = serve(r, http.MethodPost, "/grading-jobs/5/status", `{"status":"lost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/grading-jobs/6/status", `{"status":"graded"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, queue.pushed, 1)
}

// ─── External grading socket ────────────────────────────────────────

func dialGradingSocket(t *testing.T) (*websocket.Conn, *ws.Hub, *service.TokenService) {
	t.Helper()
	tokens := newTokenService(t)
	hub := ws.NewHub(zerolog.Nop())
	bridge := service.NewGradingBridgeService(memStatuses{}, nopRenderer{}, tokens, nopPublisher{}, zerolog.Nop())
	h := NewWSHandler(bridge, hub, zerolog.Nop(), nil)

	r := gin.New()
	r.GET("/ws", h.ExternalGradingStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn, hub, tokens
}

type ackMessage struct {
	Event  string          `json:"event"`
	Action string          `json:"action"`
	ID     *int64          `json:"id"`
	Data   json.RawMessage `json:"data"`
}

func TestExternalGradingInit(t *testing.T) {
	conn, hub, tokens := dialGradingSocket(t)
	token, err := tokens.SignVariantToken(12)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"action": "init",
		"id":     1,
		"data":   map[string]interface{}{"variant_id": 12, "variant_token": token},
	}))

	var ack ackMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "ack", ack.Event)
	assert.Equal(t, "init", ack.Action)
	require.NotNil(t, ack.ID)
	assert.Equal(t, int64(1), *ack.ID)

	var data service.InitAck
	require.NoError(t, json.Unmarshal(ack.Data, &data))
	assert.Equal(t, "12", data.VariantID)
	assert.Len(t, data.Submissions, 1)
	assert.Equal(t, 1, hub.Subscribers(12))
}

func TestExternalGradingRejectsBadToken(t *testing.T) {
	conn, hub, tokens := dialGradingSocket(t)
	token, err := tokens.SignVariantToken(13)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"action": "init",
		"id":     2,
		"data":   map[string]interface{}{"variant_id": "12", "variant_token": token},
	}))

	var ack ackMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "ack", ack.Event)
	assert.Equal(t, "null", string(ack.Data))
	assert.Zero(t, hub.Subscribers(12))
}

func TestExternalGradingUnknownActionAndPing(t *testing.T) {
	conn, _, _ := dialGradingSocket(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "subscribe"}))
	var errEvent ws.ErrorResponse
	require.NoError(t, conn.ReadJSON(&errEvent))
	assert.Equal(t, ws.EventError, errEvent.Event)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "ping"}))
	var pong ws.PongResponse
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, ws.EventPong, pong.Event)
}
