package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPTransport talks to simple generation gateways that accept
// {prompt, model, messages} and answer with one of content, response or
// generated_text.
type HTTPTransport struct {
	client  *resty.Client
	referer string
	title   string
}

type httpRequest struct {
	Prompt   string    `json:"prompt"`
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

type httpResponse struct {
	Content       string `json:"content"`
	Response      string `json:"response"`
	GeneratedText string `json:"generated_text"`
	Model         string `json:"model"`
}

func (r httpResponse) text() string {
	for _, s := range []string{r.Content, r.Response, r.GeneratedText} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func NewHTTPTransport(timeout time.Duration, referer, title string) *HTTPTransport {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPTransport{client: c, referer: referer, title: title}
}

func (t *HTTPTransport) Complete(ctx context.Context, backend Backend, call Call) (*Completion, error) {
	var out httpResponse
	req := t.client.R().
		SetContext(ctx).
		SetBody(httpRequest{Prompt: call.Prompt, Model: modelFor(backend, call), Messages: call.History}).
		SetResult(&out)
	if backend.APIKey != "" {
		req.SetAuthToken(backend.APIKey)
	}
	if t.referer != "" {
		req.SetHeader("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.SetHeader("X-Title", t.title)
	}

	resp, err := req.Post(backend.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", backend.ID, err)
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: abbreviate(resp.String(), 300)}
	}
	return &Completion{Content: out.text(), Model: out.Model}, nil
}

func abbreviate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
