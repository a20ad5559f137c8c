package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/detailing-api/internal/handler"
	"github.com/jwalitptl/detailing-api/internal/registry"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

type Handler struct {
	registry *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/registry")
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/categories", h.Categories)
	g.GET("/categories/:category", h.ByCategory)
	g.GET("/match", h.Match)
	g.POST("/reload", h.Reload)
	g.GET("/:id", h.Get)
	g.PUT("/:id/enabled", h.SetEnabled)
	g.Any("/:id/invoke", h.Invoke)
}

func (h *Handler) List(c *gin.Context) {
	regs := h.registry.List()
	httputil.RespondWithList(c, regs, len(regs))
}

func (h *Handler) Stats(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.registry.Stats())
}

func (h *Handler) Categories(c *gin.Context) {
	cats := h.registry.Categories()
	httputil.RespondWithList(c, cats, len(cats))
}

func (h *Handler) ByCategory(c *gin.Context) {
	regs := h.registry.ByCategory(c.Param("category"))
	httputil.RespondWithList(c, regs, len(regs))
}

// Match scores registrations against ?q=. ?limit= and ?threshold= are optional.
func (h *Handler) Match(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	var details []string
	if q == "" {
		details = append(details, "q is required")
	}
	opts := registry.MatchOptions{Limit: registry.DefaultMatchLimit}
	if s, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			details = append(details, "limit must be a positive integer")
		}
		opts.Limit = n
	}
	if s, ok := c.GetQuery("threshold"); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f > 1 {
			details = append(details, "threshold must be a number between 0 and 1")
		}
		opts.Threshold = f
	}
	if !handler.Validate(c, details) {
		return
	}

	matches := h.registry.FindMatching(q, opts)
	httputil.RespondWithList(c, matches, len(matches))
}

func (h *Handler) Get(c *gin.Context) {
	reg, ok := h.registry.Get(c.Param("id"))
	if !ok {
		notRegistered(c, c.Param("id"))
		return
	}
	httputil.RespondWithSuccess(c, reg)
}

func (h *Handler) SetEnabled(c *gin.Context) {
	body, ok := handler.ReadObject(c)
	if !ok {
		return
	}
	if !handler.Validate(c, validator.Required(body, "enabled")) {
		return
	}
	if !handler.Validate(c, validator.Types(body, map[string]validator.Kind{"enabled": validator.KindBool})) {
		return
	}
	enabled := body["enabled"].(bool)

	id := c.Param("id")
	if err := h.registry.SetEnabled(id, enabled); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			notRegistered(c, id)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}
	reg, _ := h.registry.Get(id)
	httputil.RespondWithMessage(c, http.StatusOK, "API updated successfully", reg)
}

func (h *Handler) Reload(c *gin.Context) {
	if err := h.registry.Reload(); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	zerolog.Ctx(c.Request.Context()).Info().Int("total", h.registry.Stats().Total).Msg("registry reloaded")
	httputil.RespondWithMessage(c, http.StatusOK, "Registry reloaded", h.registry.Stats())
}

// Invoke hands the request to a local registration's handler.
func (h *Handler) Invoke(c *gin.Context) {
	id := c.Param("id")
	reg, ok := h.registry.Get(id)
	switch {
	case !ok:
		notRegistered(c, id)
	case !reg.Enabled:
		c.AbortWithStatusJSON(http.StatusConflict, httputil.ErrorResponse{
			Error:   httputil.TitleConflict,
			Message: fmt.Sprintf("API %s is disabled", id),
		})
	case !reg.Local():
		httputil.RespondWithValidation(c, fmt.Sprintf("API %s is served at %s", id, reg.Endpoint), nil)
	default:
		reg.Handler(c)
	}
}

func notRegistered(c *gin.Context, id string) {
	c.AbortWithStatusJSON(http.StatusNotFound, httputil.ErrorResponse{
		Error:   httputil.TitleNotFound,
		Message: fmt.Sprintf("API %s not registered", id),
	})
}
