package models

import "time"

// Instructor is a course staff member who can give comments.
type Instructor struct {
	CourseID      string    `db:"course_id" json:"course_id"`
	Email         string    `db:"email" json:"email"`
	Name          string    `db:"name" json:"name"`
	DisplayedName string    `db:"displayed_name" json:"displayed_name"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
