package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-adp-comments/pkg/errors"
	"github.com/noah-isme/sma-adp-comments/pkg/middleware/requestid"
)

func serve(t *testing.T, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)
	return w
}

func TestPending(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Pending(c, gin.H{"course_id": "CS101"}) })

	require.Equal(t, http.StatusAccepted, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ConsistencyPending, body.Meta["consistency"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorCarriesRequestID(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Error(c, appErrors.Clone(appErrors.ErrNotFound, "comment not found")) })

	require.Equal(t, http.StatusNotFound, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "req-42", body.Meta["request_id"])
}

func TestErrorDefaultsToInternal(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Error(c, errors.New("boom")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAttachment(t *testing.T) {
	w := serve(t, func(c *gin.Context) {
		Attachment(c, File{Name: "comments.csv", ContentType: "text/csv", Data: []byte("a,b\n"), Headers: map[string]string{"X-Export-Rows": "1"}})
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="comments.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Equal(t, "1", w.Header().Get("X-Export-Rows"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
