package model

import "github.com/google/uuid"

// SharingSet is a named bundle of questions a course exposes to other courses.
type SharingSet struct {
	ID         int64          `json:"id"`
	CourseID   int64          `json:"course_id"`
	Name       string         `json:"name"`
	SharedWith []SharedCourse `json:"shared_with"`
}

// SharedCourse is a consuming course attached to a sharing set.
type SharedCourse struct {
	CourseID  int64  `json:"course_id"`
	ShortName string `json:"short_name"`
}

// SharingInfo is everything the sharing admin page shows for a course.
type SharingInfo struct {
	SharingName *string      `json:"sharing_name"`
	SharingID   uuid.UUID    `json:"sharing_id"`
	SharingSets []SharingSet `json:"sharing_sets"`
}

// ChooseSharingNameRequest sets a course's permanent sharing name.
type ChooseSharingNameRequest struct {
	SharingName string `json:"sharing_name" binding:"required,min=1,max=64,sharing_name"`
}

// CreateSharingSetRequest creates a new sharing set.
type CreateSharingSetRequest struct {
	Name string `json:"name" binding:"required,min=1,max=128"`
}

// AddSharingSetQuestionRequest puts one of the course's questions into a sharing set.
type AddSharingSetQuestionRequest struct {
	QuestionID int64 `json:"question_id" binding:"required,min=1"`
}

// AddSharingSetCourseRequest grants another course access to a sharing set.
type AddSharingSetCourseRequest struct {
	CourseSharingID uuid.UUID `json:"course_sharing_id" binding:"required"`
}
