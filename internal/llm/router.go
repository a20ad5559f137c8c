package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/detailing-api/pkg/circuitbreaker"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

type Request struct {
	Prompt      string
	Role        string
	Assignments map[string]string
	// Model overrides the backend's default model.
	Model   string
	History []Message
}

type Result struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	BackendID    string `json:"backend"`
	BackendName  string `json:"backend_name"`
	FallbackUsed bool   `json:"fallback_used"`
}

type Router struct {
	catalog   Catalog
	transport Transport
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger

	breakerSettings *circuitbreaker.Settings
	mu              sync.Mutex
	breakers        map[string]*circuitbreaker.CircuitBreaker
}

type Option func(*Router)

// WithTimeout bounds each outbound call.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

// WithCircuitBreaker gives every backend its own breaker. An open breaker
// counts as a failed call.
func WithCircuitBreaker(maxFailures int, timeout time.Duration) Option {
	return func(r *Router) {
		r.breakerSettings = &circuitbreaker.Settings{MaxFailures: maxFailures, Timeout: timeout}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.log = l }
}

func NewRouter(catalog Catalog, transport Transport, opts ...Option) *Router {
	r := &Router{
		catalog:   catalog,
		transport: transport,
		log:       zerolog.Nop(),
		breakers:  map[string]*circuitbreaker.CircuitBreaker{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route sends the prompt to the backend assigned to the role. A disabled
// backend is replaced by the fallback before any call; a failed call is
// retried once against the fallback when it is a different, usable backend.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		return nil, ErrEmptyRole
	}

	id, ok := req.Assignments[role]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAssignment, role)
	}
	backend, ok := r.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}
	if !KnownRole(role) {
		r.log.Warn().Str("role", role).Msg("no instruction for role, using chat instruction")
	}

	fallbackUsed := false
	if !backend.Enabled {
		fb, ok := r.usableFallback(req.Assignments, backend.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBackendDisabled, backend.ID)
		}
		r.log.Warn().Str("role", role).Str("backend", backend.ID).Str("fallback", fb.ID).
			Msg("assigned backend disabled, using fallback")
		r.countFallback(role, "disabled")
		backend, fallbackUsed = fb, true
	}

	call := Call{
		Prompt:  EnhancePrompt(role, req.Prompt),
		Model:   req.Model,
		History: req.History,
	}

	completion, err := r.call(ctx, role, backend, call)
	if err == nil {
		return r.result(completion, backend, fallbackUsed), nil
	}
	primaryErr := &UpstreamError{BackendID: backend.ID, Err: err}

	fb, ok := r.usableFallback(req.Assignments, backend.ID)
	if !ok {
		return nil, primaryErr
	}
	r.log.Warn().Err(err).Str("role", role).Str("backend", backend.ID).Str("fallback", fb.ID).
		Msg("backend failed, retrying with fallback")
	r.countFallback(role, "failure")

	// The caller's model override belongs to the primary backend.
	call.Model = ""
	completion, err = r.call(ctx, role, fb, call)
	if err != nil {
		return nil, &FallbackError{
			Primary:  primaryErr,
			Fallback: &UpstreamError{BackendID: fb.ID, Err: err},
		}
	}
	return r.result(completion, fb, true), nil
}

// usableFallback returns the fallback backend when it is configured, differs
// from current, exists and is enabled.
func (r *Router) usableFallback(assignments map[string]string, current string) (Backend, bool) {
	id := assignments[FallbackKey]
	if id == "" || id == current {
		return Backend{}, false
	}
	fb, ok := r.catalog.Lookup(id)
	if !ok || !fb.Enabled {
		return Backend{}, false
	}
	return fb, true
}

func (r *Router) call(ctx context.Context, role string, backend Backend, call Call) (*Completion, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var completion *Completion
	run := func() error {
		var err error
		completion, err = r.transport.Complete(ctx, backend, call)
		if err == nil && (completion == nil || strings.TrimSpace(completion.Content) == "") {
			err = ErrEmptyCompletion
		}
		return err
	}

	var err error
	if cb := r.breaker(backend.ID); cb != nil {
		err = cb.Execute(run)
	} else {
		err = run()
	}

	if r.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		r.metrics.LLMRequests.WithLabelValues(role, backend.ID, outcome).Inc()
		r.metrics.LLMLatency.WithLabelValues(backend.ID).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return completion, nil
}

func (r *Router) breaker(id string) *circuitbreaker.CircuitBreaker {
	if r.breakerSettings == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[id]
	if !ok {
		settings := *r.breakerSettings
		settings.Name = "llm:" + id
		cb = circuitbreaker.NewCircuitBreaker(settings)
		r.breakers[id] = cb
	}
	return cb
}

// BreakerStates reports the state of every breaker created so far.
func (r *Router) BreakerStates() map[string]circuitbreaker.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]circuitbreaker.State, len(r.breakers))
	for id, cb := range r.breakers {
		out[id] = cb.State()
	}
	return out
}

func (r *Router) countFallback(role, reason string) {
	if r.metrics != nil {
		r.metrics.LLMFallbacks.WithLabelValues(role, reason).Inc()
	}
}

func (r *Router) result(c *Completion, backend Backend, fallbackUsed bool) *Result {
	model := c.Model
	if model == "" {
		model = backend.Model
	}
	return &Result{
		Content:      strings.TrimSpace(c.Content),
		Model:        model,
		BackendID:    backend.ID,
		BackendName:  backend.Name,
		FallbackUsed: fallbackUsed,
	}
}
