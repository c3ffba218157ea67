package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/render"
)

// SubmissionStatusStore reads submission grading status.
type SubmissionStatusStore interface {
	ListStatusByVariant(ctx context.Context, variantID int64) ([]model.SubmissionStatus, error)
	ListStatusForGradingJob(ctx context.Context, gradingJobID int64) (int64, []model.SubmissionStatus, error)
}

// PanelRenderer renders result panels for a graded submission.
type PanelRenderer interface {
	RenderPanelsForSubmission(ctx context.Context, req render.PanelRequest) (*render.Panels, error)
}

// VariantTokenChecker validates signed variant tokens.
type VariantTokenChecker interface {
	CheckVariantToken(token string, variantID int64) bool
}

// Publisher is the slice of the Redis client used to fan out status changes.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Subscriber is a real-time client that can be enrolled in a variant topic.
type Subscriber interface {
	Join(variantID int64)
}

// InitRequest subscribes a client to a variant's grading updates.
type InitRequest struct {
	VariantID    *model.WireID `json:"variant_id"`
	VariantToken *string       `json:"variant_token"`
}

// InitAck answers a successful InitRequest.
type InitAck struct {
	VariantID   string                   `json:"variant_id"`
	Submissions []model.SubmissionStatus `json:"submissions"`
}

// ResultsRequest asks for the rendered panels of one submission.
type ResultsRequest struct {
	QuestionID         *model.WireID        `json:"question_id"`
	InstanceQuestionID model.OptionalWireID `json:"instance_question_id"`
	VariantID          *model.WireID        `json:"variant_id"`
	VariantToken       *string              `json:"variant_token"`
	SubmissionID       *model.WireID        `json:"submission_id"`
	URLPrefix          *string              `json:"url_prefix"`
	QuestionContext    *string              `json:"question_context"`
	CSRFToken          *string              `json:"csrf_token"`
	AuthorizedEdit     bool                 `json:"authorized_edit"`
}

// ResultsAck answers a successful ResultsRequest.
type ResultsAck struct {
	SubmissionID string `json:"submission_id"`
	render.Panels
}

// StatusEvent is pushed to every subscriber of a variant when one of its
// grading jobs changes status.
type StatusEvent struct {
	VariantID   string                   `json:"variant_id"`
	Submissions []model.SubmissionStatus `json:"submissions"`
}

// GradingBridgeService connects external grading status changes to the
// real-time clients watching a variant. Requests with missing fields or a bad
// token get a nil ack; the reason is only logged.
type GradingBridgeService struct {
	submissions SubmissionStatusStore
	renderer    PanelRenderer
	tokens      VariantTokenChecker
	publisher   Publisher
	log         zerolog.Logger
}

// NewGradingBridgeService creates a new GradingBridgeService.
func NewGradingBridgeService(
	submissions SubmissionStatusStore,
	renderer PanelRenderer,
	tokens VariantTokenChecker,
	publisher Publisher,
	log zerolog.Logger,
) *GradingBridgeService {
	return &GradingBridgeService{
		submissions: submissions,
		renderer:    renderer,
		tokens:      tokens,
		publisher:   publisher,
		log:         log.With().Str("component", "grading_bridge").Logger(),
	}
}

// Init checks the token, enrolls sub in the variant topic and returns the
// current submission status list.
func (s *GradingBridgeService) Init(ctx context.Context, req InitRequest, sub Subscriber) *InitAck {
	if missing := missingProp(
		prop{"variant_id", req.VariantID != nil},
		prop{"variant_token", req.VariantToken != nil},
	); missing != "" {
		s.log.Error().Str("prop", missing).Msg("External grading socket error: init: missing props")
		return nil
	}
	variantID, err := req.VariantID.Int64()
	if err != nil {
		s.log.Error().Err(err).Str("variant_id", string(*req.VariantID)).Msg("External grading socket error: init: bad variant_id")
		return nil
	}
	if !s.tokens.CheckVariantToken(*req.VariantToken, variantID) {
		s.log.Error().Int64("variant_id", variantID).Msg("External grading socket error: init: invalid token")
		return nil
	}

	sub.Join(variantID)

	submissions, err := s.submissions.ListStatusByVariant(ctx, variantID)
	if err != nil {
		s.log.Error().Err(err).Int64("variant_id", variantID).
			Msg("External grading socket error: init: Error getting variant submissions status")
		return nil
	}
	return &InitAck{VariantID: string(*req.VariantID), Submissions: submissions}
}

// GetResults checks the token and renders the panels for one submission.
func (s *GradingBridgeService) GetResults(ctx context.Context, req ResultsRequest) *ResultsAck {
	if missing := missingProp(
		prop{"question_id", req.QuestionID != nil},
		prop{"instance_question_id", req.InstanceQuestionID.Present},
		prop{"variant_id", req.VariantID != nil},
		prop{"variant_token", req.VariantToken != nil},
		prop{"submission_id", req.SubmissionID != nil},
		prop{"url_prefix", req.URLPrefix != nil},
		prop{"question_context", req.QuestionContext != nil},
		prop{"csrf_token", req.CSRFToken != nil},
	); missing != "" {
		s.log.Error().Str("prop", missing).Msg("External grading socket error: getResults: missing props")
		return nil
	}

	variantID, err := req.VariantID.Int64()
	if err != nil {
		s.log.Error().Err(err).Msg("External grading socket error: getResults: bad variant_id")
		return nil
	}
	if !s.tokens.CheckVariantToken(*req.VariantToken, variantID) {
		s.log.Error().Int64("variant_id", variantID).Msg("External grading socket error: getResults: invalid token")
		return nil
	}

	panelReq, err := buildPanelRequest(req, variantID)
	if err != nil {
		s.log.Error().Err(err).Msg("External grading socket error: getResults: bad identifiers")
		return nil
	}

	panels, err := s.renderer.RenderPanelsForSubmission(ctx, panelReq)
	if err != nil {
		s.log.Error().Err(err).Int64("submission_id", panelReq.SubmissionID).
			Msg("External grading socket error: getResults: Error rendering panels for submission")
		return nil
	}
	return &ResultsAck{SubmissionID: string(*req.SubmissionID), Panels: *panels}
}

// GradingJobStatusUpdated publishes the variant's full submission list to its
// topic after a grading job changed status.
func (s *GradingBridgeService) GradingJobStatusUpdated(ctx context.Context, gradingJobID int64) error {
	variantID, submissions, err := s.submissions.ListStatusForGradingJob(ctx, gradingJobID)
	if err != nil {
		return fmt.Errorf("select submission for grading job %d: %w", gradingJobID, err)
	}

	event := StatusEvent{VariantID: strconv.FormatInt(variantID, 10), Submissions: submissions}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	if err := s.publisher.Publish(ctx, config.CacheKey.VariantGradingChannel(variantID), payload).Err(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}

	s.log.Debug().
		Int64("grading_job_id", gradingJobID).
		Int64("variant_id", variantID).
		Int("submissions", len(submissions)).
		Msg("gradingJobStatusUpdated")
	return nil
}

func buildPanelRequest(req ResultsRequest, variantID int64) (render.PanelRequest, error) {
	questionID, err := req.QuestionID.Int64()
	if err != nil {
		return render.PanelRequest{}, fmt.Errorf("question_id: %w", err)
	}
	submissionID, err := req.SubmissionID.Int64()
	if err != nil {
		return render.PanelRequest{}, fmt.Errorf("submission_id: %w", err)
	}
	instanceQuestionID, err := req.InstanceQuestionID.Int64Ptr()
	if err != nil {
		return render.PanelRequest{}, fmt.Errorf("instance_question_id: %w", err)
	}
	return render.PanelRequest{
		SubmissionID:       submissionID,
		QuestionID:         questionID,
		InstanceQuestionID: instanceQuestionID,
		VariantID:          variantID,
		URLPrefix:          *req.URLPrefix,
		QuestionContext:    *req.QuestionContext,
		CSRFToken:          *req.CSRFToken,
		AuthorizedEdit:     req.AuthorizedEdit,
		RenderScorePanels:  true,
	}, nil
}

type prop struct {
	name    string
	present bool
}

func missingProp(props ...prop) string {
	for _, p := range props {
		if !p.present {
			return p.name
		}
	}
	return ""
}
