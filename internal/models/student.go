package models

import "time"

// Student is a learner enrolled in a course. Team and section are the groups
// a comment can target.
type Student struct {
	CourseID  string    `db:"course_id" json:"course_id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Team      string    `db:"team_name" json:"team"`
	Section   string    `db:"section_name" json:"section"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
