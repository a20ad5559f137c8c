package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/internal/handler"
	"github.com/jwalitptl/detailing-api/internal/service/auth"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*auth.TokenResponse, error)
}

type Handler struct {
	svc Authenticator
}

func NewHandler(svc Authenticator) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.Any("/auth/login", handler.Dispatch(handler.Methods{
		http.MethodPost: h.Login,
	}))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	body, ok := handler.ReadObject(c)
	if !ok {
		return
	}
	if !handler.Validate(c, validator.Required(body, "username", "password")) {
		return
	}
	if !handler.Validate(c, validator.Types(body, map[string]validator.Kind{
		"username": validator.KindString,
		"password": validator.KindString,
	})) {
		return
	}
	var req loginRequest
	if err := validator.Decode(body, &req); err != nil {
		handler.Validate(c, []string{err.Error()})
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		httputil.RespondWithSuccess(c, token)
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.ErrorResponse{
			Error:   httputil.TitleUnauthorized,
			Message: "Invalid username or password",
		})
	case errors.Is(err, auth.ErrLocked):
		c.Header("Retry-After", "900")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorResponse{
			Error:   httputil.TitleTooManyRequests,
			Message: "Too many failed login attempts, try again later",
		})
	default:
		httputil.RespondWithError(c, err)
	}
}
