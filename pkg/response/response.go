package response

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-comments/internal/models"
	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
	"github.com/noah-isme/sma-adp-comments/pkg/middleware/requestid"
)

// ConsistencyPending is the meta value of a write that was accepted but is
// not readable yet.
const ConsistencyPending = "pending"

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	// Headers are extra response headers such as row counts.
	Headers map[string]string
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Pending responds with HTTP 202 Accepted for a write whose result could not
// be read back yet. data is echoed without an id.
func Pending(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data, nil, map[string]interface{}{"consistency": ConsistencyPending})
}

// Error sends an error response converting the error to the common structure.
// The request id is echoed in meta so clients can quote it.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	envelope := Envelope{Error: appErr}
	if id := requestid.Value(c); id != "" {
		envelope.Meta = map[string]interface{}{"request_id": id}
	}
	c.JSON(appErr.Status, envelope)
}

// Attachment streams f as a download.
func Attachment(c *gin.Context, f File) {
	noStore(c)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	c.Header("Content-Length", strconv.Itoa(len(f.Data)))
	for key, value := range f.Headers {
		c.Header(key, value)
	}
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
