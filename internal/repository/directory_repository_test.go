package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryRepositoryFindCourse(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, time_zone, created_at FROM courses WHERE id = $1")).
		WithArgs("CS101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "time_zone", "created_at"}).AddRow("CS101", "Intro to CS", "UTC", time.Now()))
	mock.ExpectQuery("FROM courses").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "time_zone", "created_at"}))

	course, err := repo.FindCourse(context.Background(), "CS101")
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, "Intro to CS", course.Name)

	missing, err := repo.FindCourse(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryFindInstructor(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM instructors WHERE course_id = $1 AND email = $2")).
		WithArgs("CS101", "prof@uni.edu").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "email", "name", "displayed_name", "created_at", "updated_at"}).
			AddRow("CS101", "prof@uni.edu", "Prof X", "Professor", time.Now(), time.Now()))

	instructor, err := repo.FindInstructor(context.Background(), "CS101", "prof@uni.edu")
	require.NoError(t, err)
	require.NotNil(t, instructor)
	assert.Equal(t, "Professor", instructor.DisplayedName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryListStudentsByEmail(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE course_id = $1 AND email = ANY($2) ORDER BY email")).
		WithArgs("CS101", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "email", "name", "team_name", "section_name", "created_at", "updated_at"}).
			AddRow("CS101", "b@x.com", "Bob", "T1", "S1", time.Now(), time.Now()))

	students, err := repo.ListStudentsByEmail(context.Background(), "CS101", []string{"a@x.com", "b@x.com"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "T1", students[0].Team)
	assert.Equal(t, "S1", students[0].Section)

	empty, err := repo.ListStudentsByEmail(context.Background(), "CS101", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
