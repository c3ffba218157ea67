package model

import "github.com/google/uuid"

// Course owns questions. A course may expose questions to other courses
// through sharing sets once it has chosen a sharing name.
type Course struct {
	ID          int64     `json:"id"`
	ShortName   string    `json:"short_name"`
	Title       string    `json:"title"`
	Path        string    `json:"path"`
	SharingName *string   `json:"sharing_name"`
	SharingID   uuid.UUID `json:"sharing_id"`
}
