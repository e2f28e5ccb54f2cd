package models

import "time"

const (
	// UserRoleTeacher marks staff allowed to edit timelines.
	UserRoleTeacher = "teacher"
	// UserRoleStudent marks group members.
	UserRoleStudent = "student"
	// UserRoleGuest marks accounts without a role yet.
	UserRoleGuest = "guest"
)

// User is an account that can be a group member or a teacher.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:128;uniqueIndex;not null" json:"username"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Email     string    `gorm:"size:255" json:"email"`
	Role      string    `gorm:"size:32;index;not null;default:guest" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTeacher reports whether the user can be assigned to teach a run.
func (u User) IsTeacher() bool {
	return u.Role == UserRoleTeacher
}
