package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, incoming string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var fromGin, fromCtx string
	router := gin.New()
	router.Use(Middleware())
	router.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(headerKey, incoming)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, fromGin, fromCtx
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	rec, fromGin, fromCtx := serve(t, "upstream-42")

	assert.Equal(t, "upstream-42", rec.Header().Get(headerKey))
	assert.Equal(t, "upstream-42", fromGin)
	assert.Equal(t, "upstream-42", fromCtx)
}

func TestMiddlewareReplacesMalformedID(t *testing.T) {
	for _, incoming := range []string{"", "has space", strings.Repeat("x", maxIDLength+1)} {
		rec, fromGin, _ := serve(t, incoming)
		_, err := uuid.Parse(rec.Header().Get(headerKey))
		require.NoError(t, err, incoming)
		assert.Equal(t, rec.Header().Get(headerKey), fromGin)
	}
}
