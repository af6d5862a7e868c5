package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	"github.com/noah-isme/sma-adp-comments/internal/service"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
	"github.com/noah-isme/sma-adp-comments/pkg/response"
)

type commentService interface {
	Create(ctx context.Context, req service.CreateCommentRequest) (*models.CommentAttributes, error)
	Get(ctx context.Context, id int64) (*models.CommentAttributes, error)
	Delete(ctx context.Context, id int64) error
	ListByCourse(ctx context.Context, courseID string, filter models.CommentFilter) ([]*models.CommentAttributes, *models.Pagination, error)
	Search(ctx context.Context, req service.SearchCommentsRequest) ([]service.SearchHit, error)
}

// CommentHandler exposes comment endpoints.
type CommentHandler struct {
	service commentService
}

// NewCommentHandler builds a new handler.
func NewCommentHandler(service commentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// Register mounts the comment routes on r.
func (h *CommentHandler) Register(r gin.IRouter) {
	r.POST("/comments", h.Create)
	r.GET("/comments/search", h.Search)
	r.GET("/comments/:id", h.Get)
	r.DELETE("/comments/:id", h.Delete)
	r.GET("/courses/:courseId/comments", h.ListByCourse)
}

// Create godoc
// @Summary Create comment
// @Description Answers 202 with meta.consistency=pending and no id when the write was accepted but is not readable yet.
// @Tags Comments
// @Accept json
// @Produce json
// @Param payload body service.CreateCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	comment, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if comment.ID == nil {
		response.Pending(c, comment)
		return
	}
	response.Created(c, comment)
}

// Get godoc
// @Summary Get comment
// @Tags Comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /comments/{id} [get]
func (h *CommentHandler) Get(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}
	comment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}

// Delete godoc
// @Summary Delete comment
// @Tags Comments
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByCourse godoc
// @Summary List course comments
// @Tags Comments
// @Produce json
// @Param courseId path string true "Course ID"
// @Param giver query string false "Only comments by this giver email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param order query string false "asc or desc by creation time"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/comments [get]
func (h *CommentHandler) ListByCourse(c *gin.Context) {
	filter := models.CommentFilter{
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "limit", 20),
		SortOrder:  c.Query("order"),
		GiverEmail: c.Query("giver"),
	}
	comments, pagination, err := h.service.ListByCourse(c.Request.Context(), c.Param("courseId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, pagination)
}

// Search godoc
// @Summary Search comments
// @Tags Comments
// @Produce json
// @Param q query string true "Query text"
// @Param course_id query string false "Course filter"
// @Param limit query int false "Maximum hits"
// @Param order query string false "asc or desc by creation time instead of relevance"
// @Param hydrate query bool false "Re-read hits from the store"
// @Success 200 {object} response.Envelope
// @Router /comments/search [get]
func (h *CommentHandler) Search(c *gin.Context) {
	var req service.SearchCommentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search query"))
		return
	}
	hits, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hits, nil, map[string]interface{}{"count": len(hits)})
}

func commentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid comment id"))
		return 0, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
