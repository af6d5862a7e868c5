package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-comments/internal/models"
)

// DirectoryRepository reads the course roster tables comments refer to.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs a DirectoryRepository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// FindCourse returns the course or nil when it does not exist.
func (r *DirectoryRepository) FindCourse(ctx context.Context, courseID string) (*models.Course, error) {
	const query = `SELECT id, name, time_zone, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// FindInstructor returns the instructor of a course by email or nil.
func (r *DirectoryRepository) FindInstructor(ctx context.Context, courseID, email string) (*models.Instructor, error) {
	const query = `SELECT course_id, email, name, displayed_name, created_at, updated_at FROM instructors WHERE course_id = $1 AND email = $2`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, courseID, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find instructor: %w", err)
	}
	return &instructor, nil
}

// ListStudentsByEmail returns the students of a course whose emails are listed.
// Unknown emails are silently absent from the result.
func (r *DirectoryRepository) ListStudentsByEmail(ctx context.Context, courseID string, emails []string) ([]models.Student, error) {
	if len(emails) == 0 {
		return []models.Student{}, nil
	}
	const query = `SELECT course_id, email, name, team_name, section_name, created_at, updated_at
        FROM students WHERE course_id = $1 AND email = ANY($2) ORDER BY email`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID, pq.Array(emails)); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
