package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func serve(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestDispatch(t *testing.T) {
	r := gin.New()
	r.Any("/things", Dispatch(Methods{
		http.MethodGet:  func(c *gin.Context) { c.String(http.StatusOK, "list") },
		http.MethodPost: func(c *gin.Context) { c.String(http.StatusCreated, "made") },
	}))

	w, _ := serve(r, http.MethodPost, "/things", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w, body := serve(r, http.MethodDelete, "/things", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, OPTIONS, POST", w.Header().Get("Allow"))
	assert.Equal(t, "Method Not Allowed", body["error"])
	assert.Equal(t, "Method DELETE not allowed", body["message"])

	w, _ = serve(r, http.MethodOptions, "/things", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, w.Body.String())
}

func TestDispatchKeepsExistingCORSHeaders(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "https://shop.example.com")
		c.Next()
	})
	r.Any("/things", Dispatch(Methods{}))

	w, _ := serve(r, http.MethodOptions, "/things", "")
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestReadObject(t *testing.T) {
	r := gin.New()
	r.POST("/strict", func(c *gin.Context) {
		if body, ok := ReadObject(c); ok {
			c.JSON(http.StatusOK, body)
		}
	})
	r.POST("/optional", func(c *gin.Context) {
		if body, ok := OptionalObject(c); ok {
			c.JSON(http.StatusOK, body)
		}
	})
	r.POST("/small", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8)
		ReadObject(c)
	})

	w, body := serve(r, http.MethodPost, "/strict", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"request body must be a JSON object"}, body["details"])

	w, _ = serve(r, http.MethodPost, "/strict", `"text"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serve(r, http.MethodPost, "/optional", "  ")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = serve(r, http.MethodPost, "/small", `{"name":"a long value"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Payload Too Large", body["error"])
}

func TestIDFromBody(t *testing.T) {
	r := gin.New()
	r.POST("/id", func(c *gin.Context) {
		body, ok := OptionalObject(c)
		if !ok {
			return
		}
		if id, ok := IDFromBody(c, body); ok {
			c.JSON(http.StatusOK, gin.H{"id": id})
		}
	})

	tests := []struct {
		path   string
		body   string
		status int
		id     float64
	}{
		{"/id", `{"id":7}`, http.StatusOK, 7},
		{"/id", `{"id":"8"}`, http.StatusOK, 8},
		{"/id?id=9", ``, http.StatusOK, 9},
		{"/id?id=9", `{"id":3}`, http.StatusOK, 3},
		{"/id", `{"id":1.5}`, http.StatusBadRequest, 0},
		{"/id", `{"id":-2}`, http.StatusBadRequest, 0},
		{"/id", `{}`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		w, body := serve(r, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, tt.status, w.Code, tt.path+" "+tt.body)
		if tt.status == http.StatusOK {
			assert.Equal(t, tt.id, body["id"])
		}
	}
}

func TestReadiness(t *testing.T) {
	r := gin.New()
	NewHandler(pinger{}, prometheus.NewRegistry()).RegisterRoutes(r)

	w, body := serve(r, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])

	r = gin.New()
	NewHandler(pinger{err: errors.New("database is locked")}, prometheus.NewRegistry()).RegisterRoutes(r)

	w, body = serve(r, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.NotContains(t, w.Body.String(), "locked")
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "widgets_total", Help: "Widgets."})
	reg.MustRegister(counter)
	counter.Inc()

	r := gin.New()
	r.GET("/metrics", NewHandler(pinger{}, reg).MetricsHandler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "widgets_total 1")
}
