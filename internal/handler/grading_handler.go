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

// GradingHandler receives callbacks from the external grader.
type GradingHandler struct {
	gradingJobService *service.GradingJobService
	log               zerolog.Logger
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingJobService *service.GradingJobService, log zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		gradingJobService: gradingJobService,
		log:               log.With().Str("component", "grading_handler").Logger(),
	}
}

// UpdateGradingJobStatus godoc
// POST /api/v1/grading-jobs/:job_id/status
// Records a grading job status change and queues a notification to the
// browsers watching the variant.
func (h *GradingHandler) UpdateGradingJobStatus(c *gin.Context) {
	jobID, ok := parseIDParam(c, "job_id")
	if !ok {
		return
	}

	var req model.GradingJobStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.gradingJobService.UpdateStatus(c.Request.Context(), jobID, req.Status); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Int64("grading_job_id", jobID).Msg("Update grading job status failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"grading_job_id": jobID, "status": req.Status})
}
