package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-comments/pkg/response"
)

type directoryCache interface {
	InvalidateCourse(ctx context.Context, courseID string) error
}

// DirectoryHandler manages the cached course directory used to index comments.
type DirectoryHandler struct {
	cache directoryCache
}

// NewDirectoryHandler builds a DirectoryHandler.
func NewDirectoryHandler(cache directoryCache) *DirectoryHandler {
	return &DirectoryHandler{cache: cache}
}

// Register mounts the directory routes on r.
func (h *DirectoryHandler) Register(r gin.IRouter) {
	r.DELETE("/courses/:courseId/directory-cache", h.InvalidateCourse)
}

// InvalidateCourse godoc
// @Summary Drop cached directory records of a course
// @Description Course, instructor and student records are reloaded from the database on next use.
// @Tags Directory
// @Param courseId path string true "Course ID"
// @Success 204
// @Failure 500 {object} response.Envelope
// @Router /courses/{courseId}/directory-cache [delete]
func (h *DirectoryHandler) InvalidateCourse(c *gin.Context) {
	if err := h.cache.InvalidateCourse(c.Request.Context(), c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
