package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
	"github.com/noah-isme/mileage-api/pkg/middleware/requestid"
)

type validatorStub struct {
	claims *models.JWTClaims
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	if v.claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type auditSink struct {
	logs []*models.AuditLog
}

func (a *auditSink) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "trainer-1", Role: models.RoleTrainer}}
	router := gin.New()
	router.GET("/protected", JWT(stub), func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		c.String(http.StatusOK, value.(*models.JWTClaims).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Token abc").Code)

	rec := serve(router, "bearer abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trainer-1", rec.Body.String())
	assert.Equal(t, "abc", stub.token)

	stub.claims = nil
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer abc").Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "trainer-1", Role: models.RoleTrainer}}
	router := gin.New()
	router.GET("/protected", JWT(stub), RequireRoles(models.AdminRoles...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer t").Code)

	stub.claims = &models.JWTClaims{UserID: "pm-1", Role: models.RoleProjectManager}
	assert.Equal(t, http.StatusNoContent, serve(router, "Bearer t").Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &auditSink{}
	router := gin.New()
	router.GET("/files/:token", Audit(sink, models.AuditActionPhotoDownload, "mileage_photo"), func(c *gin.Context) {
		if c.Param("token") == "bad" {
			c.Status(http.StatusForbidden)
			return
		}
		c.Status(http.StatusOK)
	})

	for _, token := range []string{"good", "bad"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+token, nil))
	}

	require.Len(t, sink.logs, 1)
	assert.Equal(t, models.AuditActionPhotoDownload, sink.logs[0].Action)
	assert.Nil(t, sink.logs[0].UserID)
	assert.Contains(t, string(sink.logs[0].NewValues), `"path":"/files/:token"`)
}

func TestSetCacheHitExposesMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	SetCacheHit(c, true)

	assert.Equal(t, true, ExtractMeta(c)["cache_hit"])
}

func TestWithResponseMetaCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta())
	router.GET("/mileage/summary", func(c *gin.Context) {
		SetCacheHit(c, false)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/mileage/summary", nil)
	req.Header.Set("X-Request-ID", "req-7")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-7", meta["request_id"])
	assert.Equal(t, false, meta["cache_hit"])
}

type observerStub struct {
	routes []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.routes = append(o.routes, method+" "+path)
}

func TestMetricsLabelsRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer, "/metrics"))
	router.GET("/mileage/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/mileage/42", "/metrics", "/nope/123"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"GET /mileage/:id", "GET unmatched"}, observer.routes)
}
