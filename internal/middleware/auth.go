package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/pkg/auth"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
)

const (
	ContextSubject = "auth_subject"
	ContextRole    = "auth_role"
)

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

// Authenticate verifies the bearer token and stores its claims in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.jwtSvc.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// ProtectWrites requires a valid token for POST, PUT, PATCH and DELETE.
// Reads and preflight requests pass through.
func (m *AuthMiddleware) ProtectWrites() gin.HandlerFunc {
	authenticate := m.Authenticate()
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			authenticate(c)
		}
	}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="detailing-api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.ErrorResponse{
		Error:   httputil.TitleUnauthorized,
		Message: message,
	})
}
