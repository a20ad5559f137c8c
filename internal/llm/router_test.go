package llm

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/detailing-api/pkg/circuitbreaker"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

type fakeTransport struct {
	mu     sync.Mutex
	calls  []string
	prompt []string
	fail   map[string]error
}

func (f *fakeTransport) Complete(_ context.Context, backend Backend, call Call) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backend.ID)
	f.prompt = append(f.prompt, call.Prompt)
	if err := f.fail[backend.ID]; err != nil {
		return nil, err
	}
	return &Completion{Content: "reply from " + backend.ID}, nil
}

func testCatalog() *StaticCatalog {
	return NewStaticCatalog([]Backend{
		{ID: "a", Name: "Alpha", Kind: KindHTTP, Model: "alpha-1", Enabled: true},
		{ID: "b", Name: "Beta", Kind: KindHTTP, Model: "beta-1", Enabled: true},
		{ID: "off", Name: "Off", Kind: KindHTTP, Enabled: false},
	})
}

func TestRouteRejectsEmptyInput(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRouter(testCatalog(), ft)

	_, err := r.Route(context.Background(), Request{Prompt: "  ", Role: "chat", Assignments: map[string]string{"chat": "a"}})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = r.Route(context.Background(), Request{Prompt: "hi", Role: " ", Assignments: map[string]string{"chat": "a"}})
	assert.ErrorIs(t, err, ErrEmptyRole)
	assert.Empty(t, ft.calls)
}

func TestRouteMissingAssignment(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRouter(testCatalog(), ft)

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "booking", Assignments: map[string]string{"chat": "a"}})
	require.ErrorIs(t, err, ErrNoAssignment)
	assert.Equal(t, "No API assigned for role: booking", err.Error())
	assert.Empty(t, ft.calls)
}

func TestRouteUnknownBackend(t *testing.T) {
	r := NewRouter(testCatalog(), &fakeTransport{})
	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "zzz"}})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRouteEnhancesPrompt(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRouter(testCatalog(), ft)

	res, err := r.Route(context.Background(), Request{Prompt: "How much for a wax?", Role: "pricing", Assignments: map[string]string{"pricing": "a"}})
	require.NoError(t, err)
	assert.Equal(t, "reply from a", res.Content)
	assert.Equal(t, "alpha-1", res.Model)
	assert.False(t, res.FallbackUsed)
	require.Len(t, ft.prompt, 1)
	assert.True(t, strings.HasPrefix(ft.prompt[0], Instruction("pricing")))
	assert.True(t, strings.HasSuffix(ft.prompt[0], "How much for a wax?"))
}

func TestUnknownRoleUsesChatInstruction(t *testing.T) {
	assert.Equal(t, Instruction(RoleChat), Instruction("astrology"))
	assert.Len(t, Roles(), 10)
}

func TestRouteDisabledBackendUsesFallback(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRouter(testCatalog(), ft)

	res, err := r.Route(context.Background(), Request{
		Prompt: "hi", Role: "chat",
		Assignments: map[string]string{"chat": "off", FallbackKey: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "b", res.BackendID)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, []string{"b"}, ft.calls)
}

func TestRouteDisabledWithoutFallback(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRouter(testCatalog(), ft)

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "off"}})
	assert.ErrorIs(t, err, ErrBackendDisabled)

	_, err = r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "off", FallbackKey: "off"}})
	assert.ErrorIs(t, err, ErrBackendDisabled)
	assert.Empty(t, ft.calls)
}

func TestRouteRetriesOnceWithFallback(t *testing.T) {
	ft := &fakeTransport{fail: map[string]error{"a": &StatusError{StatusCode: http.StatusInternalServerError}}}
	r := NewRouter(testCatalog(), ft)

	res, err := r.Route(context.Background(), Request{
		Prompt: "hi", Role: "chat", Model: "override",
		Assignments: map[string]string{"chat": "a", FallbackKey: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "b", res.BackendID)
	assert.Equal(t, "beta-1", res.Model)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, []string{"a", "b"}, ft.calls)
}

func TestRouteBothFailNamesBothBackends(t *testing.T) {
	ft := &fakeTransport{fail: map[string]error{
		"a": &StatusError{StatusCode: http.StatusInternalServerError},
		"b": &StatusError{StatusCode: http.StatusTooManyRequests},
	}}
	r := NewRouter(testCatalog(), ft)

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "a", FallbackKey: "b"}})
	var fb *FallbackError
	require.ErrorAs(t, err, &fb)
	assert.Contains(t, err.Error(), "backend a failed")
	assert.Contains(t, err.Error(), "fallback b failed")
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(err))
	assert.True(t, IsUpstream(err))
	assert.Equal(t, []string{"a", "b"}, ft.calls)
}

func TestRouteNoRetryWhenFallbackIsSameBackend(t *testing.T) {
	ft := &fakeTransport{fail: map[string]error{"a": errors.New("connection refused")}}
	r := NewRouter(testCatalog(), ft)

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "a", FallbackKey: "a"}})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "a", ue.BackendID)
	assert.Equal(t, 0, HTTPStatus(err))
	assert.Equal(t, []string{"a"}, ft.calls)
}

func TestRouteEmptyCompletionIsFailure(t *testing.T) {
	r := NewRouter(testCatalog(), transportFunc(func(context.Context, Backend, Call) (*Completion, error) {
		return &Completion{Content: "   "}, nil
	}))
	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "a"}})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestRouteAppliesTimeout(t *testing.T) {
	r := NewRouter(testCatalog(), transportFunc(func(ctx context.Context, _ Backend, _ Call) (*Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), WithTimeout(10*time.Millisecond))

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "a"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(err))
}

func TestOpenBreakerFallsBack(t *testing.T) {
	ft := &fakeTransport{fail: map[string]error{"a": errors.New("down")}}
	r := NewRouter(testCatalog(), ft, WithCircuitBreaker(1, time.Minute))
	req := Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "a", FallbackKey: "b"}}

	_, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, r.BreakerStates()["a"])

	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "b", res.BackendID)
	assert.Equal(t, []string{"a", "b", "b"}, ft.calls)
}

func TestRouteRecordsMetrics(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	ft := &fakeTransport{fail: map[string]error{"a": errors.New("down")}}
	r := NewRouter(testCatalog(), ft, WithMetrics(m))

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "chat", Assignments: map[string]string{"chat": "a", FallbackKey: "b"}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("chat", "a", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("chat", "b", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMFallbacks.WithLabelValues("chat", "failure")))
}

type transportFunc func(context.Context, Backend, Call) (*Completion, error)

func (f transportFunc) Complete(ctx context.Context, b Backend, c Call) (*Completion, error) {
	return f(ctx, b, c)
}

func TestRouteWarnsOnRoleWithoutInstruction(t *testing.T) {
	var buf bytes.Buffer
	ft := &fakeTransport{}
	r := NewRouter(testCatalog(), ft, WithLogger(zerolog.New(&buf)))

	_, err := r.Route(context.Background(), Request{Prompt: "hi", Role: "detailing-tips", Assignments: map[string]string{"detailing-tips": "a"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no instruction for role")
	require.Len(t, ft.prompt, 1)
	assert.True(t, strings.HasPrefix(ft.prompt[0], Instruction(RoleChat)))

	buf.Reset()
	_, err = r.Route(context.Background(), Request{Prompt: "hi", Role: RoleBooking, Assignments: map[string]string{RoleBooking: "a"}})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "no instruction for role")
}
