package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport(t *testing.T) {
	var got httpRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "Detailing", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generated_text":"Sure!","model":"gw-1"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(time.Second, "", "Detailing")
	c, err := tr.Complete(context.Background(), Backend{ID: "gw", Endpoint: srv.URL, APIKey: "key-1", Model: "default"}, Call{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Sure!", c.Content)
	assert.Equal(t, "gw-1", c.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.Equal(t, "default", got.Model)
}

func TestHTTPTransportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(time.Second, "", "")
	_, err := tr.Complete(context.Background(), Backend{ID: "gw", Endpoint: srv.URL}, Call{Prompt: "hello"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, se.Body, "slow down")
}

func TestOpenAITransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "https://detailing.test", r.Header.Get("HTTP-Referer"))

		var body struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "openai/gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "assistant", body.Messages[0].Role)
		assert.Equal(t, "hello", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"openai/gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAITransport(time.Second, "https://detailing.test", "")
	c, err := tr.Complete(context.Background(),
		Backend{ID: "or", Kind: KindOpenAI, Endpoint: srv.URL, Model: "openai/gpt-4o-mini", APIKey: "k"},
		Call{Prompt: "hello", History: []Message{{Role: "assistant", Content: "Welcome"}}})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", c.Content)
}

func TestOpenAITransportKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	tr := NewOpenAITransport(time.Second, "", "")
	_, err := tr.Complete(context.Background(), Backend{ID: "or", Endpoint: srv.URL, Model: "m"}, Call{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
}

func TestMultiTransportUnknownKind(t *testing.T) {
	m := MultiTransport{KindHTTP: &fakeTransport{}}
	_, err := m.Complete(context.Background(), Backend{ID: "x", Kind: "grpc"}, Call{})
	assert.Error(t, err)

	c, err := m.Complete(context.Background(), Backend{ID: "x", Kind: KindHTTP}, Call{})
	require.NoError(t, err)
	assert.Equal(t, "reply from x", c.Content)
}
