package llm

import (
	"context"
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Call is one outbound completion request.
type Call struct {
	Prompt  string
	Model   string
	History []Message
}

type Completion struct {
	Content string
	Model   string
}

// Transport performs a single completion against one backend. Implementations
// must not retry; the router owns the fallback policy.
type Transport interface {
	Complete(ctx context.Context, backend Backend, call Call) (*Completion, error)
}

// MultiTransport picks a transport by backend kind.
type MultiTransport map[Kind]Transport

func (m MultiTransport) Complete(ctx context.Context, backend Backend, call Call) (*Completion, error) {
	t, ok := m[backend.Kind]
	if !ok {
		return nil, fmt.Errorf("no transport for backend kind %q", backend.Kind)
	}
	return t.Complete(ctx, backend, call)
}

func modelFor(backend Backend, call Call) string {
	if call.Model != "" {
		return call.Model
	}
	return backend.Model
}
