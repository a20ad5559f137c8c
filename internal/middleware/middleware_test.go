package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/detailing-api/pkg/auth"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.Any("/thing", ok)
	r.GET("/panic", func(c *gin.Context) { panic("secret detail") })
	return r
}

func serve(r http.Handler, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORS(CORSConfig{}))

	w := serve(r, http.MethodOptions, "/thing", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = serve(r, http.MethodGet, "/thing", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSSpecificOrigins(t *testing.T) {
	r := newEngine(CORS(CORSConfig{AllowOrigins: []string{"https://a.example", "https://b.example"}}))

	w := serve(r, http.MethodGet, "/thing", "", map[string]string{"Origin": "https://b.example"})
	assert.Equal(t, "https://b.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/thing", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, "https://a.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryHidesPanic(t *testing.T) {
	r := newEngine(Recovery())

	w := serve(r, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.Equal(t, "An unexpected error occurred", body.Message)
}

func TestErrorHandlerAnswersUnwritten(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(assert.AnError) })

	w := serve(r, http.MethodGet, "/fail", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), httputil.MessageInternal)
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := serve(r, http.MethodGet, "/thing", "", map[string]string{HeaderXRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))

	w = serve(r, http.MethodGet, "/thing", "", nil)
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 0.001, Burst: 2})
	r := newEngine(rl.RateLimit())

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/thing", "", nil).Code)
	}
	w := serve(r, http.MethodPost, "/thing", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Preflight is never limited, and another client has its own bucket.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodOptions, "/thing", "", nil).Code)
	assert.True(t, rl.Allow("10.0.0.9"))
}

func TestGuardSharesBucket(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 0.001, Burst: 1})
	calls := 0
	guarded := rl.Guard(func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})
	r := gin.New()
	r.POST("/direct", func(c *gin.Context) { guarded(c) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/direct", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/direct", "", nil).Code)
	assert.Equal(t, 1, calls)

	var none *RateLimiter
	assert.NotNil(t, none.Guard(func(*gin.Context) {}))
}

func TestProtectWrites(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", "test", time.Hour)
	r := newEngine(NewAuthMiddleware(jwtSvc).ProtectWrites())

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/thing", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/thing", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodDelete, "/thing", "", map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPut, "/thing", "", map[string]string{"Authorization": "Token x"}).Code)

	token, err := jwtSvc.GenerateAccessToken("admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/thing", "", map[string]string{"Authorization": "Bearer " + token}).Code)
}

func TestSizeLimit(t *testing.T) {
	r := newEngine(SizeLimit(SizeLimitConfig{MaxBodySize: 8}))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/thing", "tiny", nil).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, http.MethodPost, "/thing", "far too large", nil).Code)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	r := newEngine(Metrics(m))

	serve(r, http.MethodGet, "/thing", "", nil)
	serve(r, http.MethodGet, "/missing", "", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestTotal.WithLabelValues("GET", "/thing", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("GET", "unmatched", "client")))
}

func TestSecurityHeaders(t *testing.T) {
	r := newEngine(SecurityHeaders(DefaultSecurityConfig()))
	w := serve(r, http.MethodGet, "/thing", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
