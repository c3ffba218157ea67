package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/response"
	"github.com/stemsi/prairie-backend/internal/service"
	"github.com/stemsi/prairie-backend/internal/validator"
)

// SharingHandler exposes course sharing administration.
type SharingHandler struct {
	sharingService *service.SharingService
	log            zerolog.Logger
}

// NewSharingHandler creates a new SharingHandler.
func NewSharingHandler(sharingService *service.SharingService, log zerolog.Logger) *SharingHandler {
	return &SharingHandler{
		sharingService: sharingService,
		log:            log.With().Str("component", "sharing_handler").Logger(),
	}
}

// GetSharing godoc
// GET /api/v1/courses/:course_id/sharing
func (h *SharingHandler) GetSharing(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	info, err := h.sharingService.GetSharingInfo(c.Request.Context(), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

// ChooseSharingName godoc
// POST /api/v1/courses/:course_id/sharing/name
func (h *SharingHandler) ChooseSharingName(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	var req model.ChooseSharingNameRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.sharingService.ChooseSharingName(c.Request.Context(), courseID, req.SharingName); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sharing_name": req.SharingName})
}

// RegenerateSharingID godoc
// POST /api/v1/courses/:course_id/sharing/id
func (h *SharingHandler) RegenerateSharingID(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	id, err := h.sharingService.RegenerateSharingID(c.Request.Context(), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sharing_id": id})
}

// CreateSharingSet godoc
// POST /api/v1/courses/:course_id/sharing/sets
func (h *SharingHandler) CreateSharingSet(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	var req model.CreateSharingSetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	set, err := h.sharingService.CreateSharingSet(c.Request.Context(), courseID, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, set)
}

// AddCourseToSharingSet godoc
// POST /api/v1/courses/:course_id/sharing/sets/:set_id/courses
func (h *SharingHandler) AddCourseToSharingSet(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "set_id")
	if !ok {
		return
	}
	var req model.AddSharingSetCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.sharingService.AddCourseToSharingSet(c.Request.Context(), courseID, setID, req.CourseSharingID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// AddQuestionToSharingSet godoc
// POST /api/v1/courses/:course_id/sharing/sets/:set_id/questions
func (h *SharingHandler) AddQuestionToSharingSet(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "set_id")
	if !ok {
		return
	}
	var req model.AddSharingSetQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.sharingService.AddQuestionToSharingSet(c.Request.Context(), courseID, setID, req.QuestionID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// RemoveCourseFromSharingSet godoc
// DELETE /api/v1/courses/:course_id/sharing/sets/:set_id/courses/:consumer_id
func (h *SharingHandler) RemoveCourseFromSharingSet(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "set_id")
	if !ok {
		return
	}
	consumerID, ok := parseIDParam(c, "consumer_id")
	if !ok {
		return
	}
	if err := h.sharingService.RemoveCourseFromSharingSet(c.Request.Context(), courseID, setID, consumerID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *SharingHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSharingDisabled):
		response.Fail(c, http.StatusForbidden, response.ErrSharingDisabled)
	case errors.Is(err, service.ErrSharingNameTaken):
		response.Fail(c, http.StatusConflict, response.ErrSharingNameTaken)
	case errors.Is(err, service.ErrSharingNameImmutable):
		response.Fail(c, http.StatusConflict, response.ErrSharingNameImmutable)
	case errors.Is(err, service.ErrInvalidInput):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		h.log.Error().Err(err).Msg("Sharing request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
