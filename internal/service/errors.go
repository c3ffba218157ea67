package service

import "errors"

// Service-level errors. Handlers map these to response codes with errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrGeneration      = errors.New("question generation failed")
	ErrPersistence     = errors.New("persistence failed")
	ErrIssueForwarding = errors.New("recording course issues failed")

	ErrSharingDisabled      = errors.New("question sharing is disabled")
	ErrSharingNameTaken     = errors.New("sharing name already in use")
	ErrSharingNameImmutable = errors.New("sharing name already chosen")
	ErrQuestionNotShared    = errors.New("question is not shared with this course")
)
