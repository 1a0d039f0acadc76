package models

import "time"

// Student represents a platform member enrolled under a role.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// RoleStudent marks learners who take assessments.
	RoleStudent = "student"
	// RoleTeacher marks users who author and grade assessments.
	RoleTeacher = "teacher"
	// RoleAdmin marks institution administrators.
	RoleAdmin = "admin"
)

// IsStudent reports whether the member holds the student role.
func (s Student) IsStudent() bool {
	return s.Role == RoleStudent
}
