package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/internal/middleware"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
)

// Methods maps HTTP methods to the handler serving them on one path.
type Methods map[string]gin.HandlerFunc

// Dispatch serves a path mounted with Any. OPTIONS is always answered with an
// empty 200; methods missing from the table get a 405.
func Dispatch(methods Methods) gin.HandlerFunc {
	allowed := make([]string, 0, len(methods)+1)
	for m := range methods {
		allowed = append(allowed, m)
	}
	if _, ok := methods[http.MethodOptions]; !ok {
		allowed = append(allowed, http.MethodOptions)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			if _, ok := methods[http.MethodOptions]; !ok {
				preflight(c)
				return
			}
		}

		h, ok := methods[c.Request.Method]
		if !ok {
			c.Header("Allow", allow)
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, httputil.ErrorResponse{
				Error:   httputil.TitleMethodNotAllowed,
				Message: fmt.Sprintf("Method %s not allowed", c.Request.Method),
			})
			return
		}
		h(c)
	}
}

// preflight answers OPTIONS when the CORS middleware is not installed.
func preflight(c *gin.Context) {
	if c.Writer.Header().Get("Access-Control-Allow-Origin") == "" {
		cfg := middleware.DefaultCORSConfig()
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
		c.Header("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
		c.Header("Access-Control-Max-Age", fmt.Sprint(cfg.MaxAge))
	}
	c.AbortWithStatus(http.StatusOK)
}
