// Package llm routes prompts to language model backends by role.
package llm

type Kind string

const (
	// KindHTTP backends accept {prompt, model} and answer with plain JSON.
	KindHTTP Kind = "http"
	// KindOpenAI backends speak the OpenAI chat completions API.
	KindOpenAI Kind = "openai"
)

type Backend struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Endpoint string `json:"endpoint"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"-"`
	Enabled  bool   `json:"enabled"`
}

// Catalog resolves backend ids to descriptors.
type Catalog interface {
	Lookup(id string) (Backend, bool)
	Backends() []Backend
}

// StaticCatalog is a fixed backend table.
type StaticCatalog struct {
	order    []string
	backends map[string]Backend
}

func NewStaticCatalog(backends []Backend) *StaticCatalog {
	c := &StaticCatalog{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		if _, dup := c.backends[b.ID]; !dup {
			c.order = append(c.order, b.ID)
		}
		c.backends[b.ID] = b
	}
	return c
}

func (c *StaticCatalog) Lookup(id string) (Backend, bool) {
	b, ok := c.backends[id]
	return b, ok
}

// Backends returns every backend in declaration order.
func (c *StaticCatalog) Backends() []Backend {
	out := make([]Backend, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.backends[id])
	}
	return out
}
