package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAITransport calls OpenAI-compatible chat completion APIs such as
// OpenRouter. One client is kept per backend.
type OpenAITransport struct {
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewOpenAITransport(timeout time.Duration, referer, title string) *OpenAITransport {
	return &OpenAITransport{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &headerTransport{referer: referer, title: title, base: http.DefaultTransport},
		},
		clients: map[string]*openai.Client{},
	}
}

func (t *OpenAITransport) client(backend Backend) *openai.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[backend.ID]; ok {
		return c
	}
	cfg := openai.DefaultConfig(backend.APIKey)
	if backend.Endpoint != "" {
		cfg.BaseURL = strings.TrimRight(backend.Endpoint, "/")
	}
	cfg.HTTPClient = t.httpClient
	c := openai.NewClientWithConfig(cfg)
	t.clients[backend.ID] = c
	return c
}

func (t *OpenAITransport) Complete(ctx context.Context, backend Backend, call Call) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(call.History)+1)
	for _, m := range call.History {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: call.Prompt,
	})

	resp, err := t.client(backend).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    modelFor(backend, call),
		Messages: messages,
	})
	if err != nil {
		return nil, statusFromOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	return &Completion{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

// statusFromOpenAI keeps the HTTP status of API failures visible to HTTPStatus.
func statusFromOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: abbreviate(reqErr.Error(), 300)}
	}
	return err
}

// headerTransport adds the attribution headers OpenRouter uses for ranking.
type headerTransport struct {
	referer string
	title   string
	base    http.RoundTripper
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if h.referer == "" && h.title == "" {
		return h.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if h.referer != "" {
		req.Header.Set("HTTP-Referer", h.referer)
	}
	if h.title != "" {
		req.Header.Set("X-Title", h.title)
	}
	return h.base.RoundTrip(req)
}
