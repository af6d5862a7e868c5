package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
)

type directoryRepository interface {
	FindCourse(ctx context.Context, courseID string) (*models.Course, error)
	FindInstructor(ctx context.Context, courseID, email string) (*models.Instructor, error)
	ListStudentsByEmail(ctx context.Context, courseID string, emails []string) ([]models.Student, error)
}

// DirectoryService resolves the course, giver and recipients a comment
// document is denormalised from. Results are cached per record.
type DirectoryService struct {
	repo   directoryRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewDirectoryService constructs a DirectoryService. cache may be nil.
func NewDirectoryService(repo directoryRepository, cache *CacheService, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{repo: repo, cache: cache, logger: logger}
}

// Course returns the course or nil when unknown.
func (s *DirectoryService) Course(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := cached(ctx, s.cache, CacheKey("course", courseID), func(ctx context.Context) (*models.Course, error) {
		return s.repo.FindCourse(ctx, courseID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Instructor returns the course instructor with the given email or nil.
func (s *DirectoryService) Instructor(ctx context.Context, courseID, email string) (*models.Instructor, error) {
	instructor, err := cached(ctx, s.cache, CacheKey("instructor", courseID, email), func(ctx context.Context) (*models.Instructor, error) {
		return s.repo.FindInstructor(ctx, courseID, email)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Students maps each known email of the course to its student record.
// Unknown emails are absent from the map.
func (s *DirectoryService) Students(ctx context.Context, courseID string, emails []string) (map[string]models.Student, error) {
	students := make(map[string]models.Student, len(emails))
	var misses []string
	for _, email := range emails {
		var student models.Student
		if hit, _ := s.cache.Get(ctx, CacheKey("student", courseID, email), &student); hit {
			students[email] = student
			continue
		}
		misses = append(misses, email)
	}
	if len(misses) == 0 {
		return students, nil
	}

	loaded, err := s.repo.ListStudentsByEmail(ctx, courseID, misses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	for _, student := range loaded {
		students[student.Email] = student
		_ = s.cache.Set(ctx, CacheKey("student", courseID, student.Email), student, 0)
	}
	return students, nil
}

// InvalidateCourse drops every cached record of the course.
func (s *DirectoryService) InvalidateCourse(ctx context.Context, courseID string) error {
	for _, pattern := range []string{
		CacheKey("course", courseID),
		CacheKey("instructor", courseID, "*"),
		CacheKey("student", courseID, "*"),
	} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate directory cache")
		}
	}
	return nil
}

// cached reads key through the cache, falling back to load. Cache errors
// only cost a database round trip; nil results are not cached.
func cached[T any](ctx context.Context, cache *CacheService, key string, load func(context.Context) (*T, error)) (*T, error) {
	var value T
	if hit, _ := cache.Get(ctx, key, &value); hit {
		return &value, nil
	}
	loaded, err := load(ctx)
	if err != nil || loaded == nil {
		return loaded, err
	}
	_ = cache.Set(ctx, key, loaded, 0)
	return loaded, nil
}
