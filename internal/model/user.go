package model

// Role enumerates user roles.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// User represents an authenticated user.
type User struct {
	ID           int64  `json:"id"`
	UID          string `json:"uid"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	UID      string `json:"uid" binding:"required,min=1,max=255"`
	Password string `json:"password" binding:"required,min=1,max=128"`
}
