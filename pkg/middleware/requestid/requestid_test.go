package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewarePropagatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())

	var fromCtx, fromGin string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx = FromContext(c.Request.Context())
		fromGin = Value(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(headerKey, "req-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(headerKey))
	assert.Equal(t, "req-123", fromCtx)
	assert.Equal(t, "req-123", fromGin)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Len(t, w.Header().Get(headerKey), 36)
}
