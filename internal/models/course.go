package models

import "time"

// Course is a class offering that comments are attached to.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TimeZone  string    `db:"time_zone" json:"time_zone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
