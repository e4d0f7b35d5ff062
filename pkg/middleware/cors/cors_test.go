package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/api/generate-slots", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAllowedOriginIsEchoed(t *testing.T) {
	r := newRouter([]string{"https://planner.example.edu/"})

	req := httptest.NewRequest(http.MethodGet, "/api/generate-slots", nil)
	req.Header.Set("Origin", "https://planner.example.edu")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://planner.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownOriginIsRejected(t *testing.T) {
	r := newRouter([]string{"https://planner.example.edu"})

	req := httptest.NewRequest(http.MethodGet, "/api/generate-slots", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWildcardAllowsAnyOrigin(t *testing.T) {
	cfg := Config([]string{"*"})
	assert.Empty(t, cfg.AllowOrigins)
	assert.NotNil(t, cfg.AllowOriginFunc)
	assert.True(t, cfg.AllowOriginFunc("https://anything.example.org"))
}
