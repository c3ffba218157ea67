package handler

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/middleware"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/response"
	"github.com/stemsi/prairie-backend/internal/service"
	"github.com/stemsi/prairie-backend/internal/validator"
)

// VariantHandler handles variant creation, lookup and generated files.
type VariantHandler struct {
	variantService *service.VariantService
	tokenService   *service.TokenService
	log            zerolog.Logger
}

// NewVariantHandler creates a new VariantHandler.
func NewVariantHandler(variantService *service.VariantService, tokenService *service.TokenService, log zerolog.Logger) *VariantHandler {
	return &VariantHandler{
		variantService: variantService,
		tokenService:   tokenService,
		log:            log.With().Str("component", "variant_handler").Logger(),
	}
}

// CreateQuestionVariant godoc
// POST /api/v1/questions/:question_id/variants
// Creates a floating variant of a question, outside of any assessment.
func (h *VariantHandler) CreateQuestionVariant(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.EnsureVariantRequest
	if !bindOptional(c, &req) {
		return
	}

	ctx := c.Request.Context()
	question, err := h.variantService.GetQuestion(ctx, questionID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	courseID := question.CourseID
	if req.CourseID != nil {
		courseID = *req.CourseID
	}
	variantCourse, err := h.variantService.GetCourse(ctx, courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	variant, err := h.variantService.EnsureVariant(ctx, service.EnsureVariantParams{
		QuestionID:          &question.ID,
		UserID:              &identity.UserID,
		AuthnUserID:         identity.AuthnUserID,
		GroupWork:           req.GroupWork,
		CourseInstanceID:    req.CourseInstanceID,
		VariantCourse:       variantCourse,
		Options:             service.VariantOptions{VariantSeed: req.VariantSeed},
		RequireOpen:         req.RequireOpen != nil && *req.RequireOpen,
		ClientFingerprintID: req.ClientFingerprintID,
	})
	h.respondVariant(c, identity, http.StatusCreated, variant, err)
}

// EnsureInstanceQuestionVariant godoc
// POST /api/v1/instance-questions/:iq_id/variant
// Returns the current variant of an instance question, creating one if none
// can be reused.
func (h *VariantHandler) EnsureInstanceQuestionVariant(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	iqID, ok := parseIDParam(c, "iq_id")
	if !ok {
		return
	}

	var req model.EnsureVariantRequest
	if !bindOptional(c, &req) {
		return
	}

	ctx := c.Request.Context()
	iqc, err := h.variantService.GetInstanceQuestionContext(ctx, iqID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if identity.Role != model.RoleInstructor && (iqc.UserID == nil || *iqc.UserID != identity.UserID) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	requireOpen := true
	if req.RequireOpen != nil {
		requireOpen = *req.RequireOpen
	}

	variant, err := h.variantService.EnsureVariant(ctx, service.EnsureVariantParams{
		InstanceQuestionID:  &iqID,
		UserID:              &identity.UserID,
		AuthnUserID:         identity.AuthnUserID,
		GroupWork:           req.GroupWork,
		CourseInstanceID:    &iqc.CourseInstanceID,
		VariantCourse:       iqc.Course,
		Options:             service.VariantOptions{VariantSeed: req.VariantSeed},
		RequireOpen:         requireOpen,
		ClientFingerprintID: req.ClientFingerprintID,
	})
	h.respondVariant(c, identity, http.StatusOK, variant, err)
}

// GetVariant godoc
// GET /api/v1/variants/:variant_id
// Returns a variant with a fresh variant token for the grading socket.
func (h *VariantHandler) GetVariant(c *gin.Context) {
	variant, _, _, ok := h.loadOwnedVariant(c)
	if !ok {
		return
	}
	h.respondVariant(c, middleware.GetIdentity(c), http.StatusOK, variant, nil)
}

// GetVariantFile godoc
// GET /api/v1/variants/:variant_id/files/:filename
// Streams a file generated from the variant by its question type.
func (h *VariantHandler) GetVariantFile(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	variant, question, course, ok := h.loadOwnedVariant(c)
	if !ok {
		return
	}

	filename := c.Param("filename")
	if identity.Role != model.RoleInstructor && questiontype.RevealsAnswer(filename) {
		response.Fail(c, http.StatusNotFound, response.ErrVariantFileNotFound)
		return
	}
	data, err := h.variantService.GetFile(c.Request.Context(), filename, variant, question, course, identity.AuthnUserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, data)
}

// loadOwnedVariant resolves :variant_id and checks the caller may see it.
// Instructors may see any variant; others only their own.
func (h *VariantHandler) loadOwnedVariant(c *gin.Context) (*model.Variant, *model.Question, *model.Course, bool) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, nil, nil, false
	}

	variantID, ok := parseIDParam(c, "variant_id")
	if !ok {
		return nil, nil, nil, false
	}

	variant, question, course, err := h.variantService.GetVariant(c.Request.Context(), variantID)
	if err != nil {
		h.writeError(c, err)
		return nil, nil, nil, false
	}

	if identity.Role != model.RoleInstructor && !ownsVariant(identity, variant) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return nil, nil, nil, false
	}
	return variant, question, course, true
}

func ownsVariant(identity *service.Identity, v *model.Variant) bool {
	if v.UserID != nil && *v.UserID == identity.UserID {
		return true
	}
	return v.AuthnUserID == identity.AuthnUserID
}

// respondVariant writes the variant with a fresh variant token. Only
// instructors see the true answer.
func (h *VariantHandler) respondVariant(c *gin.Context, identity *service.Identity, status int, variant *model.Variant, err error) {
	if err != nil && !(variant != nil && errors.Is(err, service.ErrIssueForwarding)) {
		h.writeError(c, err)
		return
	}

	token, signErr := h.tokenService.SignVariantToken(variant.ID)
	if signErr != nil {
		h.log.Error().Err(signErr).Int64("variant_id", variant.ID).Msg("Sign variant token failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if identity.Role != model.RoleInstructor {
		variant = variant.WithoutTrueAnswer()
	}
	body := model.VariantResponse{Variant: variant, VariantToken: token}

	if err != nil {
		h.log.Error().Err(err).Int64("variant_id", variant.ID).Msg("Variant stored but course issues were not recorded")
		response.Partial(c, status, body, response.ErrIssueForwardingFailed)
		return
	}
	response.Success(c, status, body)
}

func (h *VariantHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidInput)
	case errors.Is(err, service.ErrQuestionNotShared):
		response.Fail(c, http.StatusForbidden, response.ErrQuestionNotShared)
	case errors.Is(err, repository.ErrInstanceQuestionClosed):
		response.Fail(c, http.StatusConflict, response.ErrInstanceQuestionClosed)
	case errors.Is(err, questiontype.ErrFileNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrVariantFileNotFound)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrGeneration):
		h.log.Error().Err(err).Msg("Variant generation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrVariantGeneration)
	case errors.Is(err, service.ErrIssueForwarding):
		h.log.Error().Err(err).Msg("Course issue forwarding failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrIssueForwardingFailed)
	default:
		h.log.Error().Err(err).Msg("Variant request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseIDParam parses a positive int64 path parameter, writing a 400 on failure.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// bindOptional binds a JSON body when one was sent.
func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if fields := validator.Bind(c, dst); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return false
	}
	return true
}
