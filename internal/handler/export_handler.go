package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-comments/internal/service"
	"github.com/noah-isme/sma-adp-comments/pkg/response"
)

type exportService interface {
	ExportCourseComments(ctx context.Context, courseID, format string) (*service.ExportFile, error)
}

// ExportHandler serves rendered comment exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds an ExportHandler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Register mounts the export routes on r.
func (h *ExportHandler) Register(r gin.IRouter) {
	r.GET("/courses/:courseId/comments/export", h.CourseComments)
}

// CourseComments godoc
// @Summary Export course comments
// @Tags Exports
// @Produce octet-stream
// @Param courseId path string true "Course ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/comments/export [get]
func (h *ExportHandler) CourseComments(c *gin.Context) {
	file, err := h.service.ExportCourseComments(c.Request.Context(), c.Param("courseId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	headers := map[string]string{"X-Export-Rows": strconv.Itoa(file.Rows)}
	if file.Truncated {
		headers["X-Export-Truncated"] = "true"
	}
	response.Attachment(c, response.File{
		Name:        file.Filename,
		ContentType: file.ContentType,
		Data:        file.Data,
		Headers:     headers,
	})
}
