package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-comments/internal/service"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
)

type exportServiceMock struct {
	file       *service.ExportFile
	err        error
	lastCourse string
	lastFormat string
}

func (m *exportServiceMock) ExportCourseComments(ctx context.Context, courseID, format string) (*service.ExportFile, error) {
	m.lastCourse = courseID
	m.lastFormat = format
	return m.file, m.err
}

func newExportRouter(svc exportService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewExportHandler(svc).Register(r)
	return r
}

func TestExportHandlerCourseComments(t *testing.T) {
	mockSvc := &exportServiceMock{file: &service.ExportFile{
		Filename:    "comments_CS101.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte("ID\n1\n"),
		Rows:        1,
		Truncated:   true,
	}}
	r := newExportRouter(mockSvc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/CS101/comments/export?format=csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CS101", mockSvc.lastCourse)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, `attachment; filename="comments_CS101.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Export-Rows"))
	assert.Equal(t, "true", w.Header().Get("X-Export-Truncated"))
	assert.Equal(t, "5", w.Header().Get("Content-Length"))
	assert.Equal(t, "ID\n1\n", w.Body.String())
}

func TestExportHandlerErrors(t *testing.T) {
	r := newExportRouter(&exportServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "course not found")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/CS404/comments/export", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
