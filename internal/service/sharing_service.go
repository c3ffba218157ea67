package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/model"
)

// SharingCourseStore is the course access the sharing admin needs.
type SharingCourseStore interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
	GetBySharingID(ctx context.Context, sharingID uuid.UUID) (*model.Course, error)
	SetSharingName(ctx context.Context, courseID int64, name string) (bool, error)
	SharingNameExists(ctx context.Context, name string) (bool, error)
	RegenerateSharingID(ctx context.Context, courseID int64) (uuid.UUID, error)
}

// SharingSetStore persists sharing sets.
type SharingSetStore interface {
	ListSetsByCourse(ctx context.Context, courseID int64) ([]model.SharingSet, error)
	CreateSet(ctx context.Context, set *model.SharingSet) error
	AddCourse(ctx context.Context, courseID, setID, consumerCourseID int64) error
	AddQuestion(ctx context.Context, courseID, setID, questionID int64) error
	RemoveCourse(ctx context.Context, courseID, setID, consumerCourseID int64) error
}

// SharingService administers a course's sharing name, sharing ID and sets.
type SharingService struct {
	enabled bool
	courses SharingCourseStore
	sets    SharingSetStore
	log     zerolog.Logger
}

// NewSharingService creates a new SharingService.
func NewSharingService(enabled bool, courses SharingCourseStore, sets SharingSetStore, log zerolog.Logger) *SharingService {
	return &SharingService{
		enabled: enabled,
		courses: courses,
		sets:    sets,
		log:     log.With().Str("component", "sharing_service").Logger(),
	}
}

func (s *SharingService) check() error {
	if !s.enabled {
		return ErrSharingDisabled
	}
	return nil
}

// GetSharingInfo returns the sharing page state for a course.
func (s *SharingService) GetSharingInfo(ctx context.Context, courseID int64) (*model.SharingInfo, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, "course")
	}
	sets, err := s.sets.ListSetsByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: list sharing sets: %w", ErrPersistence, err)
	}
	return &model.SharingInfo{
		SharingName: course.SharingName,
		SharingID:   course.SharingID,
		SharingSets: sets,
	}, nil
}

// ChooseSharingName sets the course's sharing name. It can only be chosen
// once, since other courses import questions by it.
func (s *SharingService) ChooseSharingName(ctx context.Context, courseID int64, name string) error {
	if err := s.check(); err != nil {
		return err
	}
	taken, err := s.courses.SharingNameExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check sharing name: %w", ErrPersistence, err)
	}
	if taken {
		return ErrSharingNameTaken
	}
	updated, err := s.courses.SetSharingName(ctx, courseID, name)
	if err != nil {
		return fmt.Errorf("%w: set sharing name: %w", ErrPersistence, err)
	}
	if !updated {
		if _, err := s.courses.GetByID(ctx, courseID); err != nil {
			return storeError(err, "course")
		}
		return ErrSharingNameImmutable
	}
	s.log.Info().Int64("course_id", courseID).Str("sharing_name", name).Msg("Sharing name chosen")
	return nil
}

// RegenerateSharingID replaces the course's sharing ID. Courses that were
// given the old ID can no longer use it to request access.
func (s *SharingService) RegenerateSharingID(ctx context.Context, courseID int64) (uuid.UUID, error) {
	if err := s.check(); err != nil {
		return uuid.Nil, err
	}
	id, err := s.courses.RegenerateSharingID(ctx, courseID)
	if err != nil {
		return uuid.Nil, storeError(err, "course")
	}
	return id, nil
}

// CreateSharingSet adds a named sharing set to a course.
func (s *SharingService) CreateSharingSet(ctx context.Context, courseID int64, name string) (*model.SharingSet, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	set := &model.SharingSet{CourseID: courseID, Name: name, SharedWith: []model.SharedCourse{}}
	if err := s.sets.CreateSet(ctx, set); err != nil {
		return nil, fmt.Errorf("%w: create sharing set: %w", ErrPersistence, err)
	}
	return set, nil
}

// AddCourseToSharingSet grants the course holding consumerSharingID access
// to one of courseID's sharing sets.
func (s *SharingService) AddCourseToSharingSet(ctx context.Context, courseID, setID int64, consumerSharingID uuid.UUID) error {
	if err := s.check(); err != nil {
		return err
	}
	consumer, err := s.courses.GetBySharingID(ctx, consumerSharingID)
	if err != nil {
		return storeError(err, "course")
	}
	if consumer.ID == courseID {
		return fmt.Errorf("%w: a course cannot share with itself", ErrInvalidInput)
	}
	if err := s.sets.AddCourse(ctx, courseID, setID, consumer.ID); err != nil {
		return storeError(err, "sharing set")
	}
	return nil
}

// AddQuestionToSharingSet puts one of courseID's questions into one of its
// sharing sets. Courses the set is shared with can then use the question.
func (s *SharingService) AddQuestionToSharingSet(ctx context.Context, courseID, setID, questionID int64) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.sets.AddQuestion(ctx, courseID, setID, questionID); err != nil {
		return storeError(err, "sharing set question")
	}
	s.log.Info().
		Int64("course_id", courseID).
		Int64("sharing_set_id", setID).
		Int64("question_id", questionID).
		Msg("Question added to sharing set")
	return nil
}

// RemoveCourseFromSharingSet revokes a consuming course's access.
func (s *SharingService) RemoveCourseFromSharingSet(ctx context.Context, courseID, setID, consumerCourseID int64) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.sets.RemoveCourse(ctx, courseID, setID, consumerCourseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: sharing set course", ErrNotFound)
		}
		return fmt.Errorf("%w: remove course: %w", ErrPersistence, err)
	}
	return nil
}
