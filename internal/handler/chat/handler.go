package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/detailing-api/internal/handler"
	"github.com/jwalitptl/detailing-api/internal/llm"
	"github.com/jwalitptl/detailing-api/pkg/circuitbreaker"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

type Router interface {
	Route(ctx context.Context, req llm.Request) (*llm.Result, error)
}

type Handler struct {
	router      Router
	catalog     llm.Catalog
	assignments map[string]string
}

// NewHandler serves chat requests. assignments are the defaults; callers may
// override individual roles per request.
func NewHandler(router Router, catalog llm.Catalog, assignments map[string]string) *Handler {
	return &Handler{router: router, catalog: catalog, assignments: assignments}
}

// RegisterRoutes mounts the chat endpoints. limit guards the calls that reach
// a backend.
func (h *Handler) RegisterRoutes(r gin.IRouter, limit ...gin.HandlerFunc) {
	chain := make([]gin.HandlerFunc, 0, len(limit)+1)
	chain = append(chain, limit...)
	chain = append(chain, h.Serve())

	r.Any("/openrouter", chain...)
	r.Any("/chat/:role", chain...)
	r.GET("/chat", h.Roles)
}

// Serve is the chat dispatcher, also registered as a local API.
func (h *Handler) Serve() gin.HandlerFunc {
	return handler.Dispatch(handler.Methods{
		http.MethodPost: h.Chat,
	})
}

type chatRequest struct {
	Prompt      string            `json:"prompt"`
	Messages    []llm.Message     `json:"messages"`
	Role        string            `json:"role"`
	Model       string            `json:"model"`
	Assignments map[string]string `json:"assignments"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	Role    string `json:"role"`
	*llm.Result
}

type failureResponse struct {
	httputil.ErrorResponse
	FallbackReply string `json:"fallback_reply"`
}

var chatKinds = map[string]validator.Kind{
	"prompt": validator.KindString,
	"role":   validator.KindString,
	"model":  validator.KindString,
}

func (h *Handler) Chat(c *gin.Context) {
	body, ok := handler.ReadObject(c)
	if !ok {
		return
	}
	if !handler.Validate(c, validator.Types(body, chatKinds)) {
		return
	}
	var req chatRequest
	if err := validator.Decode(body, &req); err != nil {
		handler.Validate(c, []string{"messages must be a list of {role, content} and assignments a map of role to backend id"})
		return
	}

	prompt, history := splitPrompt(req)
	if prompt == "" {
		handler.Validate(c, []string{"prompt is required"})
		return
	}

	role := firstNonEmpty(c.Param("role"), req.Role, llm.RoleChat)
	result, err := h.router.Route(c.Request.Context(), llm.Request{
		Prompt:      prompt,
		Role:        role,
		Assignments: h.merge(req.Assignments),
		Model:       req.Model,
		History:     history,
	})
	if err != nil {
		h.respondWithRouteError(c, role, prompt, err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{Success: true, Role: role, Result: result})
}

// Roles lists every role with its default backend, plus the backend table.
// breakerReporter is implemented by routers that guard backends with circuit
// breakers.
type breakerReporter interface {
	BreakerStates() map[string]circuitbreaker.State
}

func (h *Handler) Roles(c *gin.Context) {
	body := gin.H{
		"roles":       llm.Roles(),
		"assignments": h.assignments,
		"backends":    h.catalog.Backends(),
	}
	if br, ok := h.router.(breakerReporter); ok {
		body["breakers"] = br.BreakerStates()
	}
	httputil.RespondWithSuccess(c, body)
}

func (h *Handler) merge(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(h.assignments)+len(overrides))
	for k, v := range h.assignments {
		out[k] = v
	}
	for k, v := range overrides {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

func (h *Handler) respondWithRouteError(c *gin.Context, role, prompt string, err error) {
	switch {
	case errors.Is(err, llm.ErrEmptyPrompt), errors.Is(err, llm.ErrEmptyRole),
		errors.Is(err, llm.ErrNoAssignment), errors.Is(err, llm.ErrUnknownBackend):
		handler.Validate(c, []string{err.Error()})
		return
	case errors.Is(err, llm.ErrBackendDisabled):
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("role", role).Msg("no usable backend for role")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, failureResponse{
			ErrorResponse: httputil.ErrorResponse{
				Error:   httputil.TitleUnavailable,
				Message: llm.FriendlyMessage(role, llm.FailureUnavailable),
			},
			FallbackReply: llm.SmartReply(prompt),
		})
		return
	case !llm.IsUpstream(err):
		httputil.RespondWithError(c, err)
		return
	}

	failure, status := llm.Classify(err)
	zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("role", role).Str("failure", string(failure)).Msg("chat request failed upstream")
	c.AbortWithStatusJSON(status, failureResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:   http.StatusText(status),
			Message: llm.FriendlyMessage(role, failure),
		},
		FallbackReply: llm.SmartReply(prompt),
	})
}

// splitPrompt takes the prompt field, or else the last user message, with
// the preceding messages as history.
func splitPrompt(req chatRequest) (string, []llm.Message) {
	if p := strings.TrimSpace(req.Prompt); p != "" {
		return p, req.Messages
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			return strings.TrimSpace(m.Content), req.Messages[:i]
		}
	}
	return "", nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
