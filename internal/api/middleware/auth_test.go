package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/obsidian-neural/loop-service/internal/api/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuthRouter(open bool) *gin.Engine {
	r := gin.New()
	authMw := middleware.NewAuthMiddleware(open)
	r.GET("/protected", authMw.RequireAPIKey(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"api_key": middleware.GetAPIKey(c)})
	})
	return r
}

func TestRequireAPIKey_MissingKeyGated(t *testing.T) {
	r := setupAuthRouter(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestRequireAPIKey_PresentKeyGated(t *testing.T) {
	r := setupAuthRouter(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(middleware.APIKeyHeader, "my-key")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "my-key")
}

func TestRequireAPIKey_MissingKeyOpenMode(t *testing.T) {
	r := setupAuthRouter(true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAPIKey_OutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, middleware.GetAPIKey(c))
}
