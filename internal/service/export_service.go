package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
	"github.com/noah-isme/sma-adp-comments/pkg/export"
)

const (
	exportPageSize = 100
	// DefaultExportMaxRows caps a single export.
	DefaultExportMaxRows = 5000
)

type courseLookup interface {
	Course(ctx context.Context, courseID string) (*models.Course, error)
}

// ExportFile is a rendered comment export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
	Truncated   bool
}

// ExportService renders a course's comments as CSV or PDF.
type ExportService struct {
	reader  commentReader
	courses courseLookup
	maxRows int
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService. maxRows <= 0 uses DefaultExportMaxRows.
func NewExportService(reader commentReader, courses courseLookup, maxRows int, logger *zap.Logger) *ExportService {
	if maxRows <= 0 {
		maxRows = DefaultExportMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{reader: reader, courses: courses, maxRows: maxRows, logger: logger, now: time.Now}
}

// ExportCourseComments renders the course's comments oldest first.
// Timestamps are shown in the course time zone when it is known.
func (s *ExportService) ExportCourseComments(ctx context.Context, courseID, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	course, err := s.courses.Course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	loc := courseLocation(course)

	table := export.Table{
		Title:   fmt.Sprintf("%s (%s) comments", course.Name, course.ID),
		Columns: []string{"ID", "Created", "Giver", "Recipient type", "Recipients", "Status", "Comment"},
		Widths:  []float64{0.6, 1.4, 1.8, 1.1, 2.2, 0.8, 4},
	}
	total := 0
	for page := 1; len(table.Rows) < s.maxRows; page++ {
		entities, count, err := s.reader.ListByCourse(ctx, courseID, models.CommentFilter{Page: page, PageSize: exportPageSize, SortOrder: "asc"})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
		}
		total = count
		for i := range entities {
			if len(table.Rows) == s.maxRows {
				break
			}
			table.Rows = append(table.Rows, exportRow(models.NewCommentAttributesFromEntity(&entities[i]), loc))
		}
		if len(entities) < exportPageSize || page*exportPageSize >= count {
			break
		}
	}

	data, err := export.Render(format, table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	file := &ExportFile{
		Filename:    fmt.Sprintf("comments_%s_%s.%s", sanitizeFilename(course.ID), s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Data:        data,
		Rows:        len(table.Rows),
		Truncated:   total > len(table.Rows),
	}
	if file.Truncated {
		s.logger.Warn("comment export truncated",
			zap.String("course_id", courseID),
			zap.Int("rows", file.Rows),
			zap.Int("total", total),
		)
	}
	return file, nil
}

func exportRow(c *models.CommentAttributes, loc *time.Location) []string {
	id := ""
	if c.ID != nil {
		id = strconv.FormatInt(*c.ID, 10)
	}
	return []string{
		id,
		c.CreatedAt.In(loc).Format("2006-01-02 15:04 MST"),
		c.GiverEmail,
		string(c.RecipientType),
		strings.Join(c.Recipients.Sorted(), ", "),
		string(c.Status),
		c.CommentText,
	}
}

func courseLocation(course *models.Course) *time.Location {
	if course.TimeZone != "" {
		if loc, err := time.LoadLocation(course.TimeZone); err == nil {
			return loc
		}
	}
	return time.UTC
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
